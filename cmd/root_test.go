package cmd

import (
	"slices"
	"testing"
)

func TestConfigPath(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"-u", "http://x/"}, ""},
		{[]string{"-c", "scan.yaml", "-u", "http://x/"}, "scan.yaml"},
		{[]string{"--config", "a.yaml"}, "a.yaml"},
		{[]string{"--config=b.yaml"}, "b.yaml"},
		{[]string{"-cc.yaml"}, "c.yaml"},
		{[]string{"-c"}, ""},
		{[]string{"--", "-c", "late.yaml"}, ""},
	}
	for _, tt := range tests {
		if got := configPath(tt.args); got != tt.want {
			t.Errorf("configPath(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestIntSliceValue(t *testing.T) {
	codes := []int{500} // from a config file
	v := &intSliceValue{target: &codes}

	if err := v.Set("403, 404"); err != nil {
		t.Fatal(err)
	}
	if err := v.Set("301"); err != nil {
		t.Fatal(err)
	}
	if want := []int{403, 404, 301}; !slices.Equal(codes, want) {
		t.Errorf("codes = %v, want %v", codes, want)
	}
	if got := v.String(); got != "403,404,301" {
		t.Errorf("String() = %q", got)
	}
	if err := v.Set("abc"); err == nil {
		t.Error("expected error for non-numeric status")
	}
}

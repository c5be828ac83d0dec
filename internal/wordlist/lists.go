package wordlist

import (
	"embed"
	"io/fs"

	"github.com/maxvaer/dirsift/internal/target"
)

// Names of the lists in a wordlist database.
const (
	CommonDir               = "common_dir"
	CommonFileWithSuffix    = "common_file_with_suffix"
	CommonFileWithoutSuffix = "common_file_without_suffix"
	LogicDir                = "logic_dir"
	LogicFile               = "logic_file"
)

//go:embed db/*.txt
var embedded embed.FS

// Embedded returns the built-in wordlist database.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "db")
	if err != nil {
		panic(err)
	}
	return sub
}

var listsByType = map[target.URLType][]string{
	target.FileWithExtension: {CommonDir, CommonFileWithSuffix, LogicDir, LogicFile},
	target.ExtensionlessFile: {CommonDir, CommonFileWithoutSuffix},
	target.BareDirectory:     {CommonDir, CommonFileWithSuffix, CommonFileWithoutSuffix, LogicDir},
}

// fingerprintExtensions have a dedicated fingerprint_<ext> list.
var fingerprintExtensions = map[string]struct{}{
	"action": {}, "asp": {}, "aspx": {}, "cgi": {}, "do": {},
	"jsp": {}, "php": {}, "pl": {}, "py": {}, "rb": {},
}

// FingerprintList returns the list name for ext and whether one exists.
func FingerprintList(ext string) (string, bool) {
	if _, ok := fingerprintExtensions[ext]; !ok {
		return "", false
	}
	return "fingerprint_" + ext, true
}

// IsFingerprintList reports whether name is an extension-specific list.
func IsFingerprintList(name string) bool {
	for ext := range fingerprintExtensions {
		if name == "fingerprint_"+ext {
			return true
		}
	}
	return false
}

// Select returns the lists to scan for a target of type t whose
// fingerprint holds exts: the type's lists followed by one fingerprint
// list per known extension.
func Select(t target.URLType, exts []string) []string {
	lists := append([]string(nil), listsByType[t]...)
	for _, ext := range exts {
		if name, ok := FingerprintList(ext); ok {
			lists = append(lists, name)
		}
	}
	return lists
}

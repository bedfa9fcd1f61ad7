package theme

import (
	"os"
	"strings"
)

// SymbolSet holds the glyphs used across views.
type SymbolSet struct {
	Success  string
	Error    string
	Warning  string
	Info     string
	Spinner  string
	ArrowR   string
	Bullet   string
	Ellipsis string
	User     string
	Router   string
}

var unicodeSymbols = SymbolSet{
	Success:  "✓",
	Error:    "✗",
	Warning:  "⚠",
	Info:     "●",
	Spinner:  "⏳",
	ArrowR:   "→",
	Bullet:   "•",
	Ellipsis: "…",
	User:     "You",
	Router:   "Router",
}

var asciiSymbols = SymbolSet{
	Success:  "[OK]",
	Error:    "[ERR]",
	Warning:  "[!]",
	Info:     "[i]",
	Spinner:  "[...]",
	ArrowR:   "->",
	Bullet:   "*",
	Ellipsis: "...",
	User:     "You",
	Router:   "Router",
}

// Active glyphs, set by InitSymbols.
var (
	SymbolSuccess  string
	SymbolError    string
	SymbolWarning  string
	SymbolInfo     string
	SymbolSpinner  string
	SymbolArrowR   string
	SymbolBullet   string
	SymbolEllipsis string
	SymbolUser     string
	SymbolRouter   string
)

// DetectUnicodeSupport reports whether the terminal likely renders Unicode.
// A2AROUTER_ASCII_SYMBOLS=1 forces ASCII.
func DetectUnicodeSupport() bool {
	if v := os.Getenv("A2AROUTER_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
			return true
		}
	}
	return true
}

// InitSymbols picks the glyph set for the current terminal. Tests call it
// again after changing the environment.
func InitSymbols() {
	set := unicodeSymbols
	if !DetectUnicodeSupport() {
		set = asciiSymbols
	}
	SymbolSuccess = set.Success
	SymbolError = set.Error
	SymbolWarning = set.Warning
	SymbolInfo = set.Info
	SymbolSpinner = set.Spinner
	SymbolArrowR = set.ArrowR
	SymbolBullet = set.Bullet
	SymbolEllipsis = set.Ellipsis
	SymbolUser = set.User
	SymbolRouter = set.Router
}

func init() {
	InitSymbols()
}

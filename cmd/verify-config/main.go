package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/EasterCompany/dex-voice-service/config"
)

// ANSI color codes for formatted output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

func main() {
	fmt.Printf("%s--- Dexter Voice Config Verifier ---%s\n", ColorBlue, ColorReset)

	path, err := config.Path()
	if err != nil {
		fail("Could not locate config file: %v", err)
	}

	allChecksPassed := true
	if path == "" {
		fmt.Printf("  %s[WARN]%s No config file found; using defaults and environment.\n", ColorYellow, ColorReset)
	} else {
		fmt.Printf("\nVerifying %s'%s'%s...\n", ColorBlue, path, ColorReset)
		allChecksPassed = verifyConfigFile(path)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("  %s[FAIL]%s Configuration is invalid:\n", ColorRed, ColorReset)
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Printf("    - %s\n", line)
		}
		os.Exit(1)
	}
	fmt.Printf("  %s[OK]%s Resolved configuration is valid.\n", ColorGreen, ColorReset)

	out, err := json.MarshalIndent(cfg.Masked(), "", "  ")
	if err != nil {
		fail("Could not encode configuration: %v", err)
	}
	fmt.Printf("\n%s\n", out)

	fmt.Println("\n--------------------------")
	if allChecksPassed {
		fmt.Printf("%s✅ Configuration seems correct.%s\n", ColorGreen, ColorReset)
	} else {
		fmt.Printf("%s❌ Some issues were found in the configuration.%s\n", ColorRed, ColorReset)
		os.Exit(1)
	}
}

// verifyConfigFile reports unknown fields in the config file.
func verifyConfigFile(path string) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("  %s[FAIL]%s File not readable: %v\n", ColorRed, ColorReset, err)
		return false
	}
	fmt.Printf("  %s[OK]%s File exists and is readable.\n", ColorGreen, ColorReset)

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(content), config.DefaultConfig())
		if err != nil {
			fmt.Printf("  %s[FAIL]%s TOML is invalid: %v\n", ColorRed, ColorReset, err)
			return false
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			fmt.Printf("  %s[FAIL]%s TOML contains unexpected fields: %v\n", ColorRed, ColorReset, undecoded)
			return false
		}
		fmt.Printf("  %s[OK]%s TOML is valid and all fields are recognized.\n", ColorGreen, ColorReset)
		return true
	}

	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(config.DefaultConfig()); err != nil {
		fmt.Printf("  %s[FAIL]%s JSON is invalid or contains unexpected fields: %v\n", ColorRed, ColorReset, err)
		return false
	}
	fmt.Printf("  %s[OK]%s JSON is valid and all fields are recognized.\n", ColorGreen, ColorReset)
	return true
}

func fail(format string, args ...interface{}) {
	fmt.Printf("%s[FATAL]%s "+format+"\n", append([]interface{}{ColorRed, ColorReset}, args...)...)
	os.Exit(1)
}

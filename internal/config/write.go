package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// configFilePermissions is owner read/write only: profiles may hold
// passwords and tokens.
const configFilePermissions = 0o600

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// configTemplate is the config file content written by "config init".
// Global settings are present as commented-out defaults so users can
// discover every option without reading docs.
const configTemplate = `# galaxykit configuration

# ── Global settings ──
# Uncomment and modify to override defaults.

# [polling]
# sleep_seconds_polling = 10
# sleep_seconds_onetime = 10
# max_attempts = 10

# [logging]
# log_level = "warn"   # debug, info, warn, error
# log_format = "auto"  # auto, text, json
# log_file = ""

# [network]
# connect_timeout = "10s"
# request_timeout = "0"

# ── Profiles ──
# Added by 'config add-profile'. Select one with --profile.
`

// profileHeader is the TOML header line of a profile section.
func profileHeader(name string) string {
	return fmt.Sprintf("[profile.%s]", quoteKey(name))
}

// quoteKey quotes a TOML key unless it is a bare key.
func quoteKey(name string) string {
	for _, r := range name {
		bare := r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !bare {
			return fmt.Sprintf("%q", name)
		}
	}

	return name
}

// profileSection generates the TOML text for a new profile section.
func profileSection(name, server string) string {
	return fmt.Sprintf("\n%s\nserver = %q\n", profileHeader(name), server)
}

// CreateConfig writes the default template to path. An existing file is
// an error so user edits are never clobbered.
func CreateConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	slog.Info("creating config file", slog.String("path", path))

	return atomicWriteFile(path, []byte(configTemplate))
}

// AppendProfileSection appends a new profile section at the end of the
// config file, creating the file from the template when missing.
func AppendProfileSection(path, name, server string) error {
	slog.Info("appending profile section to config",
		slog.String("path", path),
		slog.String("profile", name),
		slog.String("server", server),
	)

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		data = []byte(configTemplate)
	case err != nil:
		return fmt.Errorf("reading config file: %w", err)
	}

	content := string(data)

	lines := strings.Split(content, "\n")
	if header, _ := findSectionHeader(lines, profileHeader(name)); header >= 0 {
		return fmt.Errorf("profile %q already exists in config", name)
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	content += profileSection(name, server)

	return atomicWriteFile(path, []byte(content))
}

// SetProfileKey finds a profile section and sets a key-value pair. If the
// key already exists within the section, its line is replaced. Otherwise
// it is inserted on the line after the section header.
//
// Booleans ("true"/"false") are written without quotes; all other values
// are written as quoted strings.
func SetProfileKey(path, name, key, value string) error {
	slog.Info("setting profile key in config",
		slog.String("path", path),
		slog.String("profile", name),
		slog.String("key", key),
	)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	lines := strings.Split(string(data), "\n")

	headerLine, sectionStart := findSectionHeader(lines, profileHeader(name))
	if sectionStart < 0 {
		return fmt.Errorf("profile section %q not found in config", name)
	}

	newLine := fmt.Sprintf("%s = %s", key, formatTOMLValue(value))
	lines = setKeyInSection(lines, headerLine, sectionStart, key, newLine)

	return atomicWriteFile(path, []byte(strings.Join(lines, "\n")))
}

// DeleteProfileSection removes a profile section (header + keys) and the
// blank lines immediately preceding it.
func DeleteProfileSection(path, name string) error {
	slog.Info("deleting profile section from config",
		slog.String("path", path),
		slog.String("profile", name),
	)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	lines := strings.Split(string(data), "\n")

	headerLine, sectionStart := findSectionHeader(lines, profileHeader(name))
	if sectionStart < 0 {
		return fmt.Errorf("profile section %q not found in config", name)
	}

	sectionEnd := findSectionEnd(lines, sectionStart)

	blankStart := headerLine
	for blankStart > 0 && strings.TrimSpace(lines[blankStart-1]) == "" {
		blankStart--
	}

	lines = append(lines[:blankStart], lines[sectionEnd:]...)

	return atomicWriteFile(path, []byte(strings.Join(lines, "\n")))
}

// findSectionHeader locates the line index of a section header.
// Returns the header line index and the section content start (header + 1),
// or -1 for both if the section is not found.
func findSectionHeader(lines []string, header string) (int, int) {
	for i, line := range lines {
		if strings.TrimSpace(line) == header {
			return i, i + 1
		}
	}

	return -1, -1
}

// findSectionEnd returns the index of the first line after the section's
// own content. Blank lines and comments preceding the next header belong
// to that header's preamble.
func findSectionEnd(lines []string, sectionStart int) int {
	nextHeader := len(lines)

	for i := sectionStart; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "[") {
			nextHeader = i

			break
		}
	}

	end := nextHeader
	for end > sectionStart {
		trimmed := strings.TrimSpace(lines[end-1])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			end--

			continue
		}

		break
	}

	return end
}

// setKeyInSection either replaces an existing key line or inserts a new
// one after the section header.
func setKeyInSection(lines []string, headerLine, sectionStart int, key, newLine string) []string {
	sectionEnd := findSectionEnd(lines, sectionStart)
	keyPrefix := key + " "
	keyPrefixEq := key + "="

	for i := headerLine + 1; i < sectionEnd; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, keyPrefix) || strings.HasPrefix(trimmed, keyPrefixEq) {
			lines[i] = newLine

			return lines
		}
	}

	inserted := make([]string, 0, len(lines)+1)
	inserted = append(inserted, lines[:headerLine+1]...)
	inserted = append(inserted, newLine)
	inserted = append(inserted, lines[headerLine+1:]...)

	return inserted
}

// formatTOMLValue formats a value for TOML output. Booleans are written
// bare (true/false); all other values are quoted strings.
func formatTOMLValue(value string) string {
	if value == "true" || value == "false" {
		return value
	}

	return fmt.Sprintf("%q", value)
}

// atomicWriteFile writes data to a temporary file in the same directory as
// path, then renames it over path. Parent directories are created as needed.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}

package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a runtime configuration from the provided path, applies
// defaults and validates it.
func Load(path string) (*File, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	var doc File
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}
	doc.Source = absPath

	baseDir := resolveWorkdir(filepath.Dir(absPath), os.ExpandEnv(doc.Runtime.Workdir))
	doc.Runtime.Workdir = baseDir

	for idx, proc := range doc.Processes {
		if proc == nil {
			continue
		}
		proc.ResolvedWorkdir = resolveWorkdir(baseDir, os.ExpandEnv(proc.Workdir))

		env, err := resolveEnv(proc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", processField(idx, "envFromFile"), err)
		}
		proc.Env = env
	}

	doc.ApplyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return &doc, nil
}

// resolveEnv merges envFromFile with inline env, inline values winning.
func resolveEnv(proc *Process) (map[string]string, error) {
	var merged map[string]string
	if proc.EnvFromFile != "" {
		expanded := os.ExpandEnv(proc.EnvFromFile)
		if !filepath.IsAbs(expanded) {
			expanded = filepath.Clean(filepath.Join(proc.ResolvedWorkdir, expanded))
		}
		proc.EnvFromFile = expanded

		fileEnv, err := loadEnvFile(expanded)
		if err != nil {
			return nil, err
		}
		merged = fileEnv
	}
	if len(proc.Env) > 0 {
		if merged == nil {
			merged = make(map[string]string, len(proc.Env))
		}
		for k, v := range proc.Env {
			merged[k] = os.ExpandEnv(v)
		}
	}
	return merged, nil
}

func resolveWorkdir(base, workdir string) string {
	if workdir == "" {
		return base
	}
	if filepath.IsAbs(workdir) {
		return filepath.Clean(workdir)
	}
	return filepath.Clean(filepath.Join(base, workdir))
}

func loadEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load env file %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	values := make(map[string]string)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "export "))
		key, value, ok := strings.Cut(raw, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("load env file %q: invalid line %d", path, lineNo)
		}
		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, "\"") || strings.HasPrefix(value, "'") {
			quote := value[:1]
			if len(value) < 2 || !strings.HasSuffix(value, quote) {
				return nil, fmt.Errorf("load env file %q: unmatched quote on line %d", path, lineNo)
			}
			if quote == "\"" {
				unquoted, err := strconv.Unquote(value)
				if err != nil {
					return nil, fmt.Errorf("load env file %q: parse value for %s on line %d: %w", path, key, lineNo, err)
				}
				value = unquoted
			} else {
				value = value[1 : len(value)-1]
			}
		} else {
			value = os.ExpandEnv(value)
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("load env file %q: %w", path, err)
	}
	return values, nil
}

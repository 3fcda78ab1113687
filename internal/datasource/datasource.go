// Package datasource loads the run inputs from disk: wallets, proxies,
// persisted local state and task definitions. Every loader returns
// validated in-memory values; absent files yield empty results.
package datasource

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/flemzord/edgecycle/internal/node"
	"github.com/flemzord/edgecycle/internal/proxy"
)

// Default file names, relative to the working directory.
const (
	DefaultWalletsFile    = "wallets.json"
	DefaultProxiesFile    = "proxy.txt"
	DefaultLocalStateFile = "localStorage.json"
	DefaultTasksFile      = "tasks.json"
)

// Sentinel errors.
var (
	ErrInvalidWallet = errors.New("datasource: invalid wallet")
	ErrInvalidTask   = errors.New("datasource: invalid task")
)

// Account is a wallet processed by the scheduler.
type Account struct {
	Address    string `json:"address"`
	PrivateKey string `json:"privateKey"`
}

// LogValue implements slog.LogValuer. Only the public address is logged.
func (a Account) LogValue() slog.Value {
	return slog.StringValue(a.Address)
}

// Files names the input files.
type Files struct {
	Wallets    string `yaml:"wallets"`
	Proxies    string `yaml:"proxies"`
	LocalState string `yaml:"local_state"`
	Tasks      string `yaml:"tasks"`
}

// Defaults fills empty paths with the default file names.
func (f *Files) Defaults() {
	if f.Wallets == "" {
		f.Wallets = DefaultWalletsFile
	}
	if f.Proxies == "" {
		f.Proxies = DefaultProxiesFile
	}
	if f.LocalState == "" {
		f.LocalState = DefaultLocalStateFile
	}
	if f.Tasks == "" {
		f.Tasks = DefaultTasksFile
	}
}

// Snapshot is everything loaded for a run.
type Snapshot struct {
	Accounts   []Account
	Proxies    []proxy.Addr
	LocalState *node.LocalState
	Tasks      []node.Task
}

// Load reads all four inputs.
func Load(files Files, logger *slog.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	proxies, err := LoadProxies(files.Proxies)
	if err != nil {
		return nil, err
	}
	accounts, err := LoadAccounts(files.Wallets)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		logger.Info("no wallets found", "path", files.Wallets)
	}
	state, err := LoadLocalState(files.LocalState)
	if err != nil {
		return nil, err
	}
	tasks, err := LoadTasks(files.Tasks)
	if err != nil {
		return nil, err
	}

	logger.Debug("inputs loaded",
		"wallets", len(accounts),
		"proxies", len(proxies),
		"tasks", len(tasks),
		"local_state_wallets", state.Len(),
	)

	return &Snapshot{
		Accounts:   accounts,
		Proxies:    proxies,
		LocalState: state,
		Tasks:      tasks,
	}, nil
}

// readOptional returns the file contents, or nil when the file does not exist.
func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("datasource: reading %s: %w", path, err)
	}
	return data, nil
}

// LoadAccounts reads a JSON array of {address, privateKey} records.
func LoadAccounts(path string) ([]Account, error) {
	data, err := readOptional(path)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return nil, err
	}

	var accounts []Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("datasource: parsing %s: %w", path, err)
	}

	var errs []error
	seen := make(map[string]int, len(accounts))
	for i := range accounts {
		a := &accounts[i]
		a.Address = strings.TrimSpace(a.Address)
		a.PrivateKey = strings.TrimSpace(a.PrivateKey)
		if a.Address == "" {
			errs = append(errs, fmt.Errorf("%w: wallets[%d]: address is required", ErrInvalidWallet, i))
		}
		if a.PrivateKey == "" {
			errs = append(errs, fmt.Errorf("%w: wallets[%d]: privateKey is required", ErrInvalidWallet, i))
		}
		k := strings.ToLower(a.Address)
		if first, dup := seen[k]; dup && k != "" {
			errs = append(errs, fmt.Errorf("%w: wallets[%d]: duplicate of wallets[%d] (%s)", ErrInvalidWallet, i, first, a.Address))
		} else {
			seen[k] = i
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return accounts, nil
}

// LoadProxies reads one proxy descriptor per line. Blank lines and lines
// starting with '#' are skipped.
func LoadProxies(path string) ([]proxy.Addr, error) {
	data, err := readOptional(path)
	if err != nil || data == nil {
		return nil, err
	}

	var (
		proxies []proxy.Addr
		errs    []error
		lineNo  int
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		addr, err := proxy.Parse(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("datasource: %s:%d: %w", path, lineNo, err))
			continue
		}
		proxies = append(proxies, addr)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("datasource: scanning %s: %w", path, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return proxies, nil
}

// LoadLocalState reads the persisted local state. An absent or empty file
// yields an empty state.
func LoadLocalState(path string) (*node.LocalState, error) {
	state := node.NewLocalState()
	data, err := readOptional(path)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return state, err
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("datasource: parsing %s: %w", path, err)
	}
	return state, nil
}

// SaveLocalState writes state to path when it has unsaved changes.
// The write goes through a temporary file and a rename so readers never
// observe a partial file. Reports whether anything was written.
func SaveLocalState(path string, state *node.LocalState) (bool, error) {
	if !state.Dirty() {
		return false, nil
	}

	data, version, err := state.Export()
	if err != nil {
		return false, fmt.Errorf("datasource: encoding local state: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".localstate-*")
	if err != nil {
		return false, fmt.Errorf("datasource: creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return false, fmt.Errorf("datasource: writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("datasource: closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return false, fmt.Errorf("datasource: chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return false, fmt.Errorf("datasource: replacing %s: %w", path, err)
	}

	state.MarkSaved(version)
	return true, nil
}

// LoadTasks reads a JSON array of task definitions.
func LoadTasks(path string) ([]node.Task, error) {
	data, err := readOptional(path)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return nil, err
	}

	var tasks []node.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("datasource: parsing %s: %w", path, err)
	}

	var errs []error
	for i, t := range tasks {
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: tasks[%d]: %w", ErrInvalidTask, i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return tasks, nil
}

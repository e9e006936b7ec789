package policy

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

// File is the on-disk policy definition schema.
type File struct {
	Groups        []domain.MonitoringGroup    `yaml:"monitoring_groups"`
	Failovers     []domain.FailoverPolicy     `yaml:"failover_policies"`
	LoadBalancers []domain.LoadBalancerPolicy `yaml:"load_balancer_policies"`
	Monitors      []domain.StandaloneMonitor  `yaml:"standalone_monitors"`
}

// YAMLStore loads policy definitions from a YAML file and serves them as
// validated snapshots. Definitions missing an id get one assigned and
// written back, so ids stay stable across restarts.
type YAMLStore struct {
	Path string

	mu      sync.Mutex
	cached  *domain.Snapshot
	modTime int64
}

func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{Path: path}
}

// Load returns the current snapshot, re-reading the file only when its
// mtime moved. The returned snapshot is shared; callers must not mutate it.
func (s *YAMLStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := os.Stat(s.Path)
	if err != nil {
		return nil, fmt.Errorf("stat policy file: %w", err)
	}
	mod := st.ModTime().UnixNano()
	if s.cached != nil && mod == s.modTime {
		return s.cached, nil
	}

	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	if assignIDs(&f) {
		if err := s.save(&f); err != nil {
			return nil, err
		}
		// The write-back moved the mtime; re-stat so the cache stays valid.
		if st, err = os.Stat(s.Path); err != nil {
			return nil, fmt.Errorf("stat policy file: %w", err)
		}
		mod = st.ModTime().UnixNano()
	}

	snap := &domain.Snapshot{
		Version:       mod,
		Groups:        make(map[string]domain.MonitoringGroup, len(f.Groups)),
		Failovers:     f.Failovers,
		LoadBalancers: f.LoadBalancers,
		Monitors:      f.Monitors,
	}
	for _, g := range f.Groups {
		snap.Groups[g.ID] = g
	}

	if err := Validate(snap); err != nil {
		return nil, fmt.Errorf("invalid policy file: %w", err)
	}

	s.cached = snap
	s.modTime = mod
	return snap, nil
}

func assignIDs(f *File) bool {
	changed := false
	for i := range f.Groups {
		if f.Groups[i].ID == "" {
			f.Groups[i].ID = uuid.NewString()
			changed = true
		}
	}
	for i := range f.Failovers {
		if f.Failovers[i].ID == "" {
			f.Failovers[i].ID = uuid.NewString()
			changed = true
		}
	}
	for i := range f.LoadBalancers {
		if f.LoadBalancers[i].ID == "" {
			f.LoadBalancers[i].ID = uuid.NewString()
			changed = true
		}
	}
	for i := range f.Monitors {
		if f.Monitors[i].ID == "" {
			f.Monitors[i].ID = uuid.NewString()
			changed = true
		}
	}
	return changed
}

func (s *YAMLStore) save(f *File) error {
	out, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, out, 0o644)
}

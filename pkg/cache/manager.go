package cache

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// 파티션 이름
const (
	PartitionCourse    = "course"
	PartitionLesson    = "lesson"
	PartitionBlog      = "blog"
	PartitionPackage   = "package"
	PartitionPage      = "page"
	PartitionMedia     = "media"
	PartitionAnalytics = "analytics"
)

// TTL 기본값 (변경이 잦은 종류일수록 짧게)
const (
	TTLCourse    = 10 * time.Minute
	TTLLesson    = 10 * time.Minute
	TTLBlog      = 3 * time.Minute
	TTLPackage   = 20 * time.Minute
	TTLPage      = 15 * time.Minute
	TTLMedia     = 30 * time.Minute
	TTLAnalytics = 2 * time.Minute
)

// 키 네임스페이스
const (
	ListNamespace = "list"
	itemPrefix    = "item:"
	keySep        = "|"
)

// DefaultConfigs partition defaults
func DefaultConfigs() map[string]Config {
	return map[string]Config{
		PartitionCourse:    {TTL: TTLCourse, MaxSize: 500, Enabled: true},
		PartitionLesson:    {TTL: TTLLesson, MaxSize: 1000, Enabled: true},
		PartitionBlog:      {TTL: TTLBlog, MaxSize: 500, Enabled: true},
		PartitionPackage:   {TTL: TTLPackage, MaxSize: 200, Enabled: true},
		PartitionPage:      {TTL: TTLPage, MaxSize: 300, Enabled: true},
		PartitionMedia:     {TTL: TTLMedia, MaxSize: 1000, Enabled: true},
		PartitionAnalytics: {TTL: TTLAnalytics, MaxSize: 100, Enabled: true},
	}
}

// Manager owns every partition. Built once at startup and injected.
type Manager struct {
	partitions map[string]*Partition
}

// ManagerOption configures a Manager
type ManagerOption func(*managerOptions)

type managerOptions struct {
	now       func() time.Time
	overrides map[string]Config
}

// WithClock injects the clock used by every partition
func WithClock(now func() time.Time) ManagerOption {
	return func(o *managerOptions) { o.now = now }
}

// WithOverrides replaces the defaults of the named partitions.
// Unknown names add new partitions.
func WithOverrides(overrides map[string]Config) ManagerOption {
	return func(o *managerOptions) { o.overrides = overrides }
}

// NewManager creates the partitions
func NewManager(opts ...ManagerOption) *Manager {
	o := managerOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	configs := DefaultConfigs()
	for name, cfg := range o.overrides {
		configs[name] = cfg
	}

	m := &Manager{partitions: make(map[string]*Partition, len(configs))}
	for name, cfg := range configs {
		m.partitions[name] = NewPartition(name, cfg, o.now)
	}
	return m
}

// Partition returns the named partition, nil when unknown
func (m *Manager) Partition(name string) *Partition {
	if m == nil {
		return nil
	}
	return m.partitions[name]
}

// Names sorted partition names
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.partitions))
	for name := range m.partitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InvalidateItem drops every actor's entry for id plus the partition's list namespace
func (m *Manager) InvalidateItem(partition, id string) int {
	p := m.Partition(partition)
	if p == nil {
		return 0
	}
	return p.DeletePrefix(ItemNamespace(id)+keySep) + p.DeletePrefix(ListNamespace+keySep)
}

// InvalidateLists drops the list namespace only
func (m *Manager) InvalidateLists(partition string) int {
	p := m.Partition(partition)
	if p == nil {
		return 0
	}
	return p.DeletePrefix(ListNamespace + keySep)
}

// Sweep drops expired entries in every partition
func (m *Manager) Sweep() int {
	if m == nil {
		return 0
	}
	removed := 0
	for _, p := range m.partitions {
		removed += p.Sweep()
	}
	return removed
}

// Stats per partition
func (m *Manager) Stats() map[string]Stats {
	out := make(map[string]Stats, len(m.partitions))
	for name, p := range m.partitions {
		out[name] = p.Stats()
	}
	return out
}

// Key builds "namespace|scope|param|param...". scope identifies the actor and role
// so role-dependent results never cross actors.
func Key(namespace, scope string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(namespace)
	b.WriteString(keySep)
	b.WriteString(scope)
	for _, param := range params {
		b.WriteString(keySep)
		fmt.Fprint(&b, param)
	}
	return b.String()
}

// ItemNamespace namespace of one item's entries
func ItemNamespace(id string) string {
	return itemPrefix + id
}

// ItemKey single item entry for scope
func ItemKey(id, scope string) string {
	return Key(ItemNamespace(id), scope)
}

// ListKey list entry for scope and query parameters
func ListKey(scope string, params ...interface{}) string {
	return Key(ListNamespace, scope, params...)
}

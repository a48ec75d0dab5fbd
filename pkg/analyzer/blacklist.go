package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go-phishguard/pkg/logger"
)

const defaultBlacklistDescription = "Known phishing domains"

// 黑名单文件不存在时写入的示例数据
var seedBlacklist = blacklistFile{
	Domains: []string{
		"phishing-example.com",
		"fake-login.net",
		"suspicious-site.org",
	},
	Description: "Known phishing domains - Please add suspicious domains here",
}

// blacklistFile 黑名单文件格式
type blacklistFile struct {
	Domains     []string `json:"domains"`
	Description string   `json:"description"`
}

// Blacklist 已知钓鱼域名集合，内存中维护并持久化到JSON文件
type Blacklist struct {
	mu          sync.RWMutex
	domains     map[string]struct{}
	description string
	path        string
}

// NewBlacklist 从文件加载黑名单；文件不存在时写入示例数据，解析失败时退化为空集合
func NewBlacklist(path string) *Blacklist {
	b := &Blacklist{
		domains: make(map[string]struct{}),
		path:    path,
	}
	if err := b.Reload(); err != nil {
		logger.Log.Errorf("加载黑名单失败，使用空黑名单: %v", err)
	}
	return b
}

func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// Contains 大小写不敏感的成员判断
func (b *Blacklist) Contains(domain string) bool {
	domain = normalizeDomain(domain)
	if domain == "" {
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.domains[domain]
	return ok
}

var (
	ErrEmptyDomain    = errors.New("empty domain")
	ErrDomainExists   = errors.New("domain already blacklisted")
	ErrDomainNotFound = errors.New("domain not blacklisted")
)

// Add 添加域名。为空、已存在或持久化失败时返回 false
func (b *Blacklist) Add(domain string) bool {
	return b.Insert(domain) == nil
}

// Insert 与 Add 相同，但区分失败原因：ErrEmptyDomain、ErrDomainExists 或持久化错误
func (b *Blacklist) Insert(domain string) error {
	domain = normalizeDomain(domain)
	if domain == "" {
		return ErrEmptyDomain
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.domains[domain]; ok {
		logger.Log.Warnf("域名已在黑名单中: %s", domain)
		return ErrDomainExists
	}

	next := b.copyLocked()
	next[domain] = struct{}{}
	if err := b.saveLocked(next); err != nil {
		logger.Log.Errorf("黑名单保存失败，未添加 %s: %v", domain, err)
		return err
	}
	b.domains = next

	logger.Log.Infof("已添加到黑名单: %s", domain)
	return nil
}

// Remove 删除域名。为空、不存在或持久化失败时返回 false
func (b *Blacklist) Remove(domain string) bool {
	return b.Delete(domain) == nil
}

// Delete 与 Remove 相同，但区分失败原因
func (b *Blacklist) Delete(domain string) error {
	domain = normalizeDomain(domain)
	if domain == "" {
		return ErrEmptyDomain
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.domains[domain]; !ok {
		logger.Log.Warnf("域名不在黑名单中: %s", domain)
		return ErrDomainNotFound
	}

	next := b.copyLocked()
	delete(next, domain)
	if err := b.saveLocked(next); err != nil {
		logger.Log.Errorf("黑名单保存失败，未删除 %s: %v", domain, err)
		return err
	}
	b.domains = next

	logger.Log.Infof("已从黑名单删除: %s", domain)
	return nil
}

// Count 返回黑名单条目数
func (b *Blacklist) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.domains)
}

// Snapshot 返回集合副本
func (b *Blacklist) Snapshot() map[string]struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.copyLocked()
}

// List 返回排序后的域名列表
func (b *Blacklist) List() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedDomains(b.domains)
}

// Description 返回黑名单描述
func (b *Blacklist) Description() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.description
}

// Reload 重新读取文件并整体替换内存状态。读取或解析失败时内存状态被清空并返回错误
func (b *Blacklist) Reload() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Log.Warnf("黑名单文件不存在: %s", b.path)
		return b.seedLocked()
	}
	if err != nil {
		b.domains = make(map[string]struct{})
		return fmt.Errorf("read blacklist %s: %w", b.path, err)
	}

	var file blacklistFile
	if err := json.Unmarshal(data, &file); err != nil {
		b.domains = make(map[string]struct{})
		return fmt.Errorf("parse blacklist %s: %w", b.path, err)
	}

	b.domains = toSet(file.Domains)
	b.description = file.Description
	logger.Log.Infof("黑名单加载完成: %d 个域名", len(b.domains))
	return nil
}

// seedLocked 写入示例黑名单；写入失败时示例数据仍在内存中生效
func (b *Blacklist) seedLocked() error {
	b.domains = toSet(seedBlacklist.Domains)
	b.description = seedBlacklist.Description
	if err := b.saveLocked(b.domains); err != nil {
		return fmt.Errorf("create default blacklist %s: %w", b.path, err)
	}
	logger.Log.Infof("已创建默认黑名单: %s", b.path)
	return nil
}

// saveLocked 先写临时文件再 rename，保证文件整体替换
func (b *Blacklist) saveLocked(domains map[string]struct{}) error {
	description := b.description
	if description == "" {
		description = defaultBlacklistDescription
	}
	data, err := json.MarshalIndent(blacklistFile{
		Domains:     sortedDomains(domains),
		Description: description,
	}, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(b.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	// Windows 下 rename 不会覆盖已存在的文件
	if runtime.GOOS == "windows" {
		os.Remove(b.path)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		os.Remove(tmp)
		return err
	}
	logger.Log.Debugf("黑名单已保存: %d 个域名", len(domains))
	return nil
}

func (b *Blacklist) copyLocked() map[string]struct{} {
	cp := make(map[string]struct{}, len(b.domains))
	for d := range b.domains {
		cp[d] = struct{}{}
	}
	return cp
}

func toSet(domains []string) map[string]struct{} {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		if d = normalizeDomain(d); d != "" {
			set[d] = struct{}{}
		}
	}
	return set
}

func sortedDomains(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Package safety 在目标文本交给计划生成之前进行安全过滤。
package safety

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync/atomic"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed blocklist.yaml
var defaultBlocklist []byte

// Blocklist 是 Filter 可加载的屏蔽词配置
type Blocklist struct {
	Words      []string `yaml:"words"`
	Obfuscated []string `yaml:"obfuscated"`
}

// Verdict 是 Check 的结果，文本安全时 Term 为空
type Verdict struct {
	Safe  bool
	Term  string
	Match string
}

type rule struct {
	term    string
	pattern *regexp.Regexp
}

type ruleSet struct {
	words      []rule
	obfuscated []rule
}

// Filter 基于屏蔽词判断文本，可并发使用，运行时可通过 Replace 替换规则
type Filter struct {
	rules atomic.Pointer[ruleSet]
}

// ParseBlocklist 解析 YAML 屏蔽词列表
func ParseBlocklist(data []byte) (Blocklist, error) {
	var list Blocklist
	if err := yaml.Unmarshal(data, &list); err != nil {
		return Blocklist{}, fmt.Errorf("parse blocklist: %w", err)
	}
	if len(list.Words) == 0 && len(list.Obfuscated) == 0 {
		return Blocklist{}, fmt.Errorf("parse blocklist: no terms")
	}
	return list, nil
}

// DefaultBlocklist 返回内置列表
func DefaultBlocklist() Blocklist {
	list, err := ParseBlocklist(defaultBlocklist)
	if err != nil {
		panic(err)
	}
	return list
}

// NewFilter 编译 list
func NewFilter(list Blocklist) (*Filter, error) {
	f := &Filter{}
	if err := f.Replace(list); err != nil {
		return nil, err
	}
	return f, nil
}

// NewDefaultFilter 使用内置列表
func NewDefaultFilter() *Filter {
	f, err := NewFilter(DefaultBlocklist())
	if err != nil {
		panic(err)
	}
	return f
}

// LoadFile 读取并编译 YAML 屏蔽词文件
func LoadFile(path string) (*Filter, error) {
	list, err := readBlocklist(path)
	if err != nil {
		return nil, err
	}
	return NewFilter(list)
}

// Reload 用 path 的内容替换规则，出错时保留旧规则
func (f *Filter) Reload(path string) error {
	list, err := readBlocklist(path)
	if err != nil {
		return err
	}
	return f.Replace(list)
}

// Replace 编译 list 并原子替换
func (f *Filter) Replace(list Blocklist) error {
	set, err := compile(list)
	if err != nil {
		return err
	}
	f.rules.Store(set)
	return nil
}

// Size 返回已编译的规则数
func (f *Filter) Size() int {
	set := f.rules.Load()
	if set == nil {
		return 0
	}
	return len(set.words) + len(set.obfuscated)
}

// IsSafeGoal 判断文本能否用于生成计划
func (f *Filter) IsSafeGoal(text string) bool {
	return f.Check(text).Safe
}

// Check 规范化文本后逐条匹配屏蔽词
func (f *Filter) Check(text string) Verdict {
	normalized := Normalize(text)
	if normalized == "" {
		return Verdict{}
	}

	set := f.rules.Load()
	if set == nil {
		return Verdict{Safe: true}
	}

	for _, r := range set.words {
		if m := r.pattern.FindString(normalized); m != "" {
			return Verdict{Term: r.term, Match: m}
		}
	}
	for _, r := range set.obfuscated {
		if m := r.pattern.FindString(normalized); m != "" {
			return Verdict{Term: r.term, Match: m}
		}
	}
	return Verdict{Safe: true}
}

// Normalize 做 NFKC 规范化、转小写并合并空白
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ToLower(text)
	return strings.Join(strings.Fields(text), " ")
}

func readBlocklist(path string) (Blocklist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Blocklist{}, fmt.Errorf("read blocklist: %w", err)
	}
	return ParseBlocklist(data)
}

func compile(list Blocklist) (*ruleSet, error) {
	set := &ruleSet{}
	seen := make(map[string]struct{})

	for _, word := range list.Words {
		term := Normalize(word)
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		pattern, err := regexp.Compile(`(^|[^\pL\pN])` + regexp.QuoteMeta(term) + `($|[^\pL\pN])`)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", word, err)
		}
		set.words = append(set.words, rule{term: term, pattern: pattern})
	}

	for _, stem := range list.Obfuscated {
		term := Normalize(stem)
		letters := make([]string, 0, len(term))
		for _, r := range term {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				letters = append(letters, regexp.QuoteMeta(string(r)))
			}
		}
		if len(letters) < 2 {
			continue
		}

		// 字母之间可夹任意非字母字符，从单词边界开始
		pattern, err := regexp.Compile(`(^|[^\pL\pN])` + strings.Join(letters, `[^\pL\pN]*`))
		if err != nil {
			return nil, fmt.Errorf("compile obfuscated %q: %w", stem, err)
		}
		set.obfuscated = append(set.obfuscated, rule{term: term, pattern: pattern})
	}

	if len(set.words) == 0 && len(set.obfuscated) == 0 {
		return nil, fmt.Errorf("blocklist has no usable terms")
	}
	return set, nil
}

// Package geofilter классифицирует свободный текст объявления как
// относящийся к Москве, Санкт-Петербургу, обоим городам сразу, либо ни к
// одному — по трёхуровневому словарному совпадению (явный город → метро →
// улицы), с ранним выходом и LRU-кешем результатов.
package geofilter

import (
	"bufio"
	"bytes"
	"container/list"
	"embed"
	"regexp"
	"strings"
	"sync"
)

// Битовые маски городов.
const (
	Moscow = 1
	SPB    = 2
)

// Level описывает, на каком уровне словаря сработало совпадение.
type Level string

const (
	LevelExplicit Level = "explicit"
	LevelMetro    Level = "metro"
	LevelStreet   Level = "street"
	LevelNone     Level = "none"
)

//go:embed data/*.txt
var dataFS embed.FS

var (
	reCityPrefix = regexp.MustCompile(`\bг\.?\s+`)
	reHyphen     = regexp.MustCompile(`(\w)-(\w)`)
	reSpecial    = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

type abbrRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// abbrTable — упорядоченная таблица подстановок для типов улиц. Порядок
// важен: раскрытие сокращений должно предшествовать удалению полных слов,
// иначе "пр-кт" не успеет превратиться в "проспект" прежде чем "проспект"
// будет вычищен следующим правилом.
var abbrTable = []abbrRule{
	{regexp.MustCompile(`\bпр-кт\b`), "проспект"},
	{regexp.MustCompile(`\bпросп\b`), "проспект"},
	{regexp.MustCompile(`\bбул\b`), "бульвар"},
	{regexp.MustCompile(`\bнаб\b`), "набережная"},
	{regexp.MustCompile(`\bш\b`), "шоссе"},
	{regexp.MustCompile(`\bпр\b`), "проспект"},
	{regexp.MustCompile(`\bул\b`), ""},
	{regexp.MustCompile(`\bулица\b`), ""},
	{regexp.MustCompile(`\bпроспект\b`), ""},
	{regexp.MustCompile(`\bбульвар\b`), ""},
	{regexp.MustCompile(`\bнабережная\b`), ""},
	{regexp.MustCompile(`\bшоссе\b`), ""},
	{regexp.MustCompile(`\bпереулок\b`), ""},
	{regexp.MustCompile(`\bтупик\b`), ""},
	{regexp.MustCompile(`\bплощадь\b`), ""},
	{regexp.MustCompile(`\bаллея\b`), ""},
	{regexp.MustCompile(`\bпроезд\b`), ""},
	{regexp.MustCompile(`\bпросека\b`), ""},
}

func normalize(text string) string {
	t := strings.ToLower(text)
	t = strings.ReplaceAll(t, "ё", "е")
	t = reCityPrefix.ReplaceAllString(t, "")
	t = strings.ReplaceAll(t, ".", " ")
	t = reHyphen.ReplaceAllString(t, "$1 $2")
	for _, rule := range abbrTable {
		t = rule.pattern.ReplaceAllString(t, rule.replacement)
	}
	t = reSpecial.ReplaceAllString(t, " ")
	t = reSpaces.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

type cacheEntry struct {
	key   string
	mask  int
	level Level
}

// Filter — тиражируемый (после New — неизменяемый кроме кеша) гео-фильтр.
type Filter struct {
	aliasDict   map[string]int
	metroDict   map[string]int
	streetDict  map[string]int
	maxAliasN   int
	maxMetroN   int
	maxStreetN  int

	cacheMu    sync.Mutex
	cacheSize  int
	cacheOrder *list.List
	cacheIndex map[string]*list.Element
}

const defaultCacheSize = 15000

// New строит гео-фильтр из встроенных словарей.
func New() (*Filter, error) {
	f := &Filter{
		aliasDict:  make(map[string]int),
		metroDict:  make(map[string]int),
		streetDict: make(map[string]int),
		cacheSize:  defaultCacheSize,
		cacheOrder: list.New(),
		cacheIndex: make(map[string]*list.Element),
	}

	loaders := []struct {
		file string
		mask int
		dict map[string]int
	}{
		{"data/moscow_aliases.txt", Moscow, f.aliasDict},
		{"data/spb_aliases.txt", SPB, f.aliasDict},
		{"data/metro_moscow.txt", Moscow, f.metroDict},
		{"data/metro_spb.txt", SPB, f.metroDict},
		{"data/streets_moscow.txt", Moscow, f.streetDict},
		{"data/streets_spb.txt", SPB, f.streetDict},
	}

	for _, l := range loaders {
		if err := loadDict(l.file, l.mask, l.dict); err != nil {
			return nil, err
		}
	}

	f.maxAliasN = maxKeyLen(f.aliasDict)
	f.maxMetroN = maxKeyLen(f.metroDict)
	f.maxStreetN = maxKeyLen(f.streetDict)

	return f, nil
}

func loadDict(path string, mask int, target map[string]int) error {
	data, err := dataFS.ReadFile(path)
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		entry := strings.TrimSpace(scanner.Text())
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}
		key := normalize(entry)
		if key == "" {
			continue
		}
		target[key] |= mask
	}
	return scanner.Err()
}

func maxKeyLen(dict map[string]int) int {
	max := 1
	for k := range dict {
		n := len(strings.Fields(k))
		if n > max {
			max = n
		}
	}
	return max
}

func scan(tokens []string, dict map[string]int, maxN int) int {
	n := len(tokens)
	mask := 0
	limit := maxN
	if limit > n {
		limit = n
	}
	for size := 1; size <= limit; size++ {
		for i := 0; i+size <= n; i++ {
			key := strings.Join(tokens[i:i+size], " ")
			if hit, ok := dict[key]; ok {
				mask |= hit
				if mask == (Moscow | SPB) {
					return mask
				}
			}
		}
	}
	return mask
}

func (f *Filter) detect(normalized string) (int, Level) {
	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return 0, LevelNone
	}

	if aliasMask := scan(tokens, f.aliasDict, f.maxAliasN); aliasMask != 0 {
		return aliasMask, LevelExplicit
	}

	metroMask := scan(tokens, f.metroDict, f.maxMetroN)
	if metroMask == Moscow || metroMask == SPB {
		return metroMask, LevelMetro
	}

	streetMask := scan(tokens, f.streetDict, f.maxStreetN)
	if streetMask == Moscow || streetMask == SPB {
		return streetMask, LevelStreet
	}

	return 0, LevelNone
}

func (f *Filter) getMask(text string) (int, Level) {
	norm := normalize(text)

	f.cacheMu.Lock()
	if elem, ok := f.cacheIndex[norm]; ok {
		f.cacheOrder.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		mask, level := entry.mask, entry.level
		f.cacheMu.Unlock()
		return mask, level
	}
	f.cacheMu.Unlock()

	mask, level := f.detect(norm)

	f.cacheMu.Lock()
	defer f.cacheMu.Unlock()
	if elem, ok := f.cacheIndex[norm]; ok {
		f.cacheOrder.MoveToFront(elem)
		return mask, level
	}
	if f.cacheOrder.Len() >= f.cacheSize {
		oldest := f.cacheOrder.Back()
		if oldest != nil {
			f.cacheOrder.Remove(oldest)
			delete(f.cacheIndex, oldest.Value.(*cacheEntry).key)
		}
	}
	elem := f.cacheOrder.PushFront(&cacheEntry{key: norm, mask: mask, level: level})
	f.cacheIndex[norm] = elem

	return mask, level
}

// ShouldTakeForMoscow возвращает false только при однозначном сигнале СПб.
func (f *Filter) ShouldTakeForMoscow(text string) bool {
	mask, _ := f.getMask(text)
	return mask != SPB
}

// ShouldTakeForSpb возвращает false только при однозначном сигнале Москвы.
func (f *Filter) ShouldTakeForSpb(text string) bool {
	mask, _ := f.getMask(text)
	return mask != Moscow
}

// Classify возвращает (mask, level) для вызывающего кода, которому нужно
// знать уровень совпадения (например, для логирования причины исключения).
func (f *Filter) Classify(text string) (int, Level) {
	return f.getMask(text)
}

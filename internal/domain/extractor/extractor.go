// Package extractor парсит свободный русскоязычный текст объявления о смене
// на пункте выдачи и извлекает из него тип объявления, дату выхода, ставку
// и штрих-код-тег (шк). Правила и константы взяты из предметной области:
// короткие разговорные объявления без строгой грамматики.
package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Extracted — результат успешного разбора одного сообщения.
type Extracted struct {
	Type     string // "worker" или "employer"
	Date     string // ISO yyyy-mm-dd
	Price    *int
	Shk      string // диапазон "A-B", число, качественный тег, либо пусто
	Location string // всегда пусто здесь — локация определяется GeoFilter'ом
}

var employerKeywords = []string{
	"требуется", "требуются", "вакансия", "ищем", "набираем", "приглашаем",
	"нужен сотрудник", "нужен работник", "нужен человек", "ищем продавца",
	"оператора", "на постоянную работу", "график работы", "оформление",
	"выплаты", "зп 2 раза", "условия", "требования",
}

var workerKeywords = []string{
	"выйду", "могу выйти", "ищу работу", "ищу смену", "ищу подработку",
	"возьму смену", "рассмотрю смены", "устроюсь", "устроимся", "свободен",
	"готов работать", "ищу пункт", "могу",
}

var weekdays = map[string]time.Weekday{
	"понедельник": time.Monday,
	"вторник":     time.Tuesday,
	"среда":       time.Wednesday,
	"среду":       time.Wednesday,
	"четверг":     time.Thursday,
	"пятница":     time.Friday,
	"пятницу":     time.Friday,
	"суббота":     time.Saturday,
	"субботу":     time.Saturday,
	"воскресенье": time.Sunday,
}

var weekdayAbbr = map[string]time.Weekday{
	"пн": time.Monday,
	"вт": time.Tuesday,
	"ср": time.Wednesday,
	"чт": time.Thursday,
	"пт": time.Friday,
	"сб": time.Saturday,
	"вс": time.Sunday,
}

var months = map[string]int{
	"января":   1,
	"февраля":  2,
	"марта":    3,
	"апреля":   4,
	"мая":      5,
	"июня":     6,
	"июля":     7,
	"августа":  8,
	"сентября": 9,
	"октября":  10,
	"ноября":   11,
	"декабря":  12,
}

var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*к(?:[^\p{L}\p{N}_]|$)(?:\s*\d)?`),
	regexp.MustCompile(`(\d+)\s*тыс`),
	regexp.MustCompile(`(\d{3,5})\s*(?:₽|руб|р\.?)`),
	regexp.MustCompile(`(?:ставка|зп|оплата)[^\d]{0,10}(\d{3,5})`),
	regexp.MustCompile(`\b(\d{4,5})\b`),
}

// kSuffixExclude отдельно проверяет, что после числа в к-паттерне не идёт
// ещё одна цифра (адресный контекст вроде "67 к 3" не должен читаться как цена).
var kSuffixExclude = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*к\s*\d`)

var shkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{2,4})[^\S\n]*[-–][^\S\n]*(\d{2,4})[^\S\n]*шк`),
	regexp.MustCompile(`шк[^\S\n]*[-:—]?[^\S\n]*(\d{2,4})[^\S\n]*[-–][^\S\n]*(\d{2,4})`),
	regexp.MustCompile(`(\d{2,4})\s*шк`),
	regexp.MustCompile(`шк\s+до\s+(\d{2,4})`),
	regexp.MustCompile(`шк\s*[-:—]?\s*(\d{2,4})`),
	regexp.MustCompile(`шк\s*[-:—]?\s*(мало|много|средне)`),
}

var workerIntentPattern = regexp.MustCompile(`выйду|ищу|устроюсь|свободен|готов`)

var weekdayFullPattern = buildAltPattern(weekdays)
var weekdayAbbrPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])(пн|вт|ср|чт|пт|сб|вс)(?:[^\p{L}\p{N}_]|$)`)
var dayOfMonthPattern = regexp.MustCompile(`\b(\d{1,2})\s*(?:го|числа)(?:[^\p{L}\p{N}_]|$)`)
var ddmmPattern = regexp.MustCompile(`\b(\d{1,2})[./](\d{1,2})\b`)
var ddMonthPattern = buildMonthPattern()

func buildAltPattern(m map[string]time.Weekday) *regexp.Regexp {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	return regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])(` + strings.Join(keys, "|") + `)(?:[^\p{L}\p{N}_]|$)`)
}

func buildMonthPattern() *regexp.Regexp {
	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	return regexp.MustCompile(`\b(\d{1,2})\s+(` + strings.Join(keys, "|") + `)(?:[^\p{L}\p{N}_]|$)`)
}

// Extract разбирает текст сообщения, отправленного в момент messageTime, и
// возвращает извлечённые поля либо false, если сообщение не похоже на
// объявление этой предметной области.
func Extract(text string, messageTime time.Time) (Extracted, bool) {
	lower := strings.ToLower(text)

	msgType := detectType(lower)

	date := extractDate(lower, messageTime)
	shk := extractShk(lower)

	effectiveType := msgType
	if effectiveType == "" && workerIntentPattern.MatchString(lower) {
		effectiveType = "worker"
	}

	price := extractPrice(lower, effectiveType)

	if msgType == "" {
		switch {
		case workerIntentPattern.MatchString(lower):
			msgType = "worker"
		case price != nil:
			msgType = "employer"
		default:
			return Extracted{}, false
		}
	}

	return Extracted{
		Type:  msgType,
		Date:  date.Format("2006-01-02"),
		Price: price,
		Shk:   shk,
	}, true
}

func detectType(lower string) string {
	for _, kw := range employerKeywords {
		if strings.Contains(lower, kw) {
			return "employer"
		}
	}
	for _, kw := range workerKeywords {
		if strings.Contains(lower, kw) {
			return "worker"
		}
	}
	return ""
}

func extractDate(lower string, messageTime time.Time) time.Time {
	today := truncateDay(messageTime)

	switch {
	case strings.Contains(lower, "послезавтра"):
		return today.AddDate(0, 0, 2)
	case strings.Contains(lower, "завтра"):
		return today.AddDate(0, 0, 1)
	case strings.Contains(lower, "сегодня"), strings.Contains(lower, "сейчас"):
		return today
	}

	if m := weekdayFullPattern.FindStringSubmatch(lower); m != nil {
		if wd, ok := weekdays[m[1]]; ok {
			return nextWeekday(today, wd)
		}
	}

	if m := weekdayAbbrPattern.FindStringSubmatch(lower); m != nil {
		if wd, ok := weekdayAbbr[m[1]]; ok {
			return nextWeekday(today, wd)
		}
	}

	if m := dayOfMonthPattern.FindStringSubmatch(lower); m != nil {
		day, err := strconv.Atoi(m[1])
		if err == nil && day >= 1 && day <= 31 {
			candidate := time.Date(today.Year(), today.Month(), day, 0, 0, 0, 0, today.Location())
			if candidate.Before(today) {
				candidate = candidate.AddDate(0, 1, 0)
				candidate = time.Date(candidate.Year(), candidate.Month(), day, 0, 0, 0, 0, today.Location())
			}
			return candidate
		}
	}

	if m := ddmmPattern.FindStringSubmatch(lower); m != nil {
		day, errD := strconv.Atoi(m[1])
		month, errM := strconv.Atoi(m[2])
		if errD == nil && errM == nil && month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			candidate := time.Date(today.Year(), time.Month(month), day, 0, 0, 0, 0, today.Location())
			if candidate.Before(today) {
				candidate = time.Date(today.Year()+1, time.Month(month), day, 0, 0, 0, 0, today.Location())
			}
			return candidate
		}
	}

	if m := ddMonthPattern.FindStringSubmatch(lower); m != nil {
		day, errD := strconv.Atoi(m[1])
		month, ok := months[m[2]]
		if errD == nil && ok && day >= 1 && day <= 31 {
			candidate := time.Date(today.Year(), time.Month(month), day, 0, 0, 0, 0, today.Location())
			if candidate.Before(today) {
				candidate = time.Date(today.Year()+1, time.Month(month), day, 0, 0, 0, 0, today.Location())
			}
			return candidate
		}
	}

	return today
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func nextWeekday(from time.Time, target time.Weekday) time.Time {
	offset := (int(target) - int(from.Weekday()) + 7) % 7
	return from.AddDate(0, 0, offset)
}

func extractPrice(lower, effectiveType string) *int {
	var candidates []int

	for i, re := range pricePatterns {
		matches := re.FindAllStringSubmatch(lower, -1)
		for _, m := range matches {
			raw := strings.ReplaceAll(m[1], ",", ".")
			val, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			multiplier := 1.0
			switch i {
			case 0: // "<N>к"
				if kSuffixExclude.MatchString(m[0]) {
					continue
				}
				multiplier = 1000
			case 1: // "<N> тыс"
				multiplier = 1000
			}
			candidates = append(candidates, int(val*multiplier))
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	result := candidates[0]
	for _, c := range candidates[1:] {
		if effectiveType == "worker" {
			if c < result {
				result = c
			}
		} else if c > result {
			result = c
		}
	}
	return &result
}

func extractShk(lower string) string {
	for _, re := range shkPatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		if len(m) >= 3 && m[2] != "" {
			return m[1] + "-" + m[2]
		}
		if len(m) >= 2 && m[1] != "" {
			return m[1]
		}
	}
	return ""
}

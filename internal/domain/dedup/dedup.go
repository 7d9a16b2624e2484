// Package dedup реализует две чистые функции, лежащие в основе
// двухуровневой дедупликации найденных объявлений: контент-хеш (без
// привязки к автору) и ключ автора (для подавления кросс-постов одного
// человека). Сама проверка на дубликаты выполняется хранилищем (internal/store);
// этот пакет только вычисляет ключи.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ContentHash вычисляет SHA-256 от нормализованного {цена, локация, текст}.
// Автор сознательно не участвует в хеше: одно и то же объявление часто
// репостится под разными именами пересылающих аккаунтов.
func ContentHash(price *int, location, messageText string) string {
	priceStr := ""
	if price != nil {
		priceStr = strconv.Itoa(*price)
	}

	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		loc = "unknown"
	}

	text := strings.ToLower(strings.TrimSpace(messageText))

	content := priceStr + "|" + loc + "|" + text
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// AuthorKey формирует логический (не персистентный) ключ кросс-пост
// подавления: author|work_date|price. Используется только как понятийная
// запись — фактическая проверка идёт напрямую по таблице found_items через
// Store.CheckAuthorDuplicate.
func AuthorKey(author, workDate string, price *int) string {
	priceStr := ""
	if price != nil {
		priceStr = strconv.Itoa(*price)
	}
	return fmt.Sprintf("%s|%s|%s", author, workDate, priceStr)
}

package blacklist

import "testing"

func TestExtractInfo(t *testing.T) {
	text := "ID: 123456\nНик: @ivanov\nФИО: Иванов Иван Иванович\nТел: +7 900 123-45-67\nработодатель не платит"
	info := extractInfo(text)

	if info.UserID == nil || *info.UserID != 123456 {
		t.Fatalf("UserID = %v, want 123456", info.UserID)
	}
	if info.Username != "@ivanov" {
		t.Errorf("Username = %q, want @ivanov", info.Username)
	}
	if info.FullName != "Иванов Иван Иванович" {
		t.Errorf("FullName = %q", info.FullName)
	}
	if info.Phone != "+7 900 123-45-67" {
		t.Errorf("Phone = %q", info.Phone)
	}
	if info.Role != "employer" {
		t.Errorf("Role = %q, want employer", info.Role)
	}
}

func TestExtractInfoWorkerRole(t *testing.T) {
	info := extractInfo("этот сотрудник постоянно опаздывает")
	if info.Role != "worker" {
		t.Errorf("Role = %q, want worker", info.Role)
	}
}

func TestMatchesIDRegex(t *testing.T) {
	if !matchesIDRegex("ID: 42 нарушитель", 42) {
		t.Error("expected id match")
	}
	if matchesIDRegex("ID: 42 нарушитель", 43) {
		t.Error("mismatched id should not match")
	}
	if matchesIDRegex("без идентификатора", 42) {
		t.Error("text without ID tag should not match")
	}
}

func TestMatchesFIOTokens(t *testing.T) {
	if !matchesFIOTokens("ФИО: Иванов Иван Иванович, жалобы от коллег", "Иванов Иван") {
		t.Error("expected all fio tokens to be found")
	}
	if matchesFIOTokens("Петров Петр", "Иванов Иван") {
		t.Error("unrelated text should not match")
	}
	if matchesFIOTokens("короткий текст", "А Б") {
		t.Error("tokens shorter than 2 runes should be ignored, leaving no match")
	}
}

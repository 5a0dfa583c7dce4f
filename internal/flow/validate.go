package flow

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ariefcatur/order-intake-bot/internal/settings"
)

// Validator turns raw input into the stored value or a *Rejection.
type Validator func(raw string) (string, error)

// Rejection is a ValidationRejection: reported in place, nothing is stored.
type Rejection struct {
	Key  string // bot_config override
	Text string
}

func (r *Rejection) Error() string { return r.Text }

func (r *Rejection) Message(snap settings.Snapshot) string {
	return snap.TextOr(r.Key, r.Text)
}

var (
	RejectInvalidSelection = &Rejection{Key: "msg_invalid_choice", Text: "❌ Неверный выбор"}
	RejectUseButtons       = &Rejection{Key: "msg_use_buttons", Text: "👆 Выберите вариант кнопкой выше."}
	RejectNoPhotos         = &Rejection{Key: "msg_no_photos", Text: "⚠️ Вы не загрузили ни одного фото."}
	RejectPhotoRequired    = &Rejection{Key: "msg_photo_required", Text: "⚠️ Для этого заказа фото обязательно."}
	RejectExpectPhoto      = &Rejection{Key: "msg_expect_photo", Text: "📸 Отправьте фото или нажмите «✅ Все фото отправлены»."}
	RejectEmpty            = &Rejection{Key: "msg_empty_input", Text: "❌ Пустой ответ. Напишите текстом."}
	RejectBrandShort       = &Rejection{Key: "msg_brand_short", Text: "❌ Слишком короткое название. Введите марку и модель (например: Toyota Camry):"}
	RejectYearFormat       = &Rejection{Key: "msg_year_format", Text: "❌ Введите корректный год в формате ГГГГ (например: 2010)."}
	RejectYearRange        = &Rejection{Key: "msg_year_range", Text: "❌ Введите реальный год выпуска (1900-2025)."}
	RejectIssueShort       = &Rejection{Key: "msg_issue_short", Text: "❌ Опишите подробнее (минимум 5 символов)."}
	RejectNotThisStep      = &Rejection{Key: "msg_not_this_step", Text: "⚠️ Сейчас этот ответ не подходит. Следуйте подсказке выше."}
)

const (
	MinYear = 1900
	MaxYear = 2025

	maxBrandRunes = 100
	maxTextRunes  = 2000
)

var yearPattern = regexp.MustCompile(`^(19|20)\d\d$`)

// NonEmpty accepts any non-blank text, trimmed and capped.
func NonEmpty(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", RejectEmpty
	}
	return truncateRunes(s, maxTextRunes), nil
}

func CarBrand(raw string) (string, error) {
	s := truncateRunes(strings.TrimSpace(raw), maxBrandRunes)
	if utf8.RuneCountInString(s) < 2 {
		return "", RejectBrandShort
	}
	return s, nil
}

func CarYear(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !yearPattern.MatchString(s) {
		return "", RejectYearFormat
	}
	year, _ := strconv.Atoi(s)
	if year < MinYear || year > MaxYear {
		return "", RejectYearRange
	}
	return s, nil
}

func EngineIssueText(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if utf8.RuneCountInString(s) < 5 {
		return "", RejectIssueShort
	}
	return truncateRunes(s, maxTextRunes), nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

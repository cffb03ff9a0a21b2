package chat

import (
	"strings"
	"unicode"
)

const (
	emergencyWarningEN = "Warning: this may be a medical emergency. Call your local emergency number or seek immediate professional help."
	emergencyWarningAR = "تحذير: قد تكون هذه حالة طبية طارئة. اتصل برقم الطوارئ المحلي أو اطلب المساعدة الطبية الفورية."
)

var emergencyPhrasesEN = []string{
	"chest pain", "heart attack", "stroke", "can't breathe", "cannot breathe", "not breathing",
	"difficulty breathing", "shortness of breath", "choking", "severe bleeding", "bleeding heavily",
	"unconscious", "passed out", "seizure", "overdose", "anaphylaxis", "suicide", "kill myself",
	"poisoning", "slurred speech",
}

var emergencyPhrasesAR = []string{
	"ألم في الصدر", "ألم بالصدر", "نوبة قلبية", "جلطة", "سكتة دماغية", "لا أستطيع التنفس",
	"ضيق في التنفس", "صعوبة في التنفس", "اختناق", "نزيف حاد", "فقدان الوعي", "فاقد الوعي",
	"تشنج", "جرعة زائدة", "انتحار", "تسمم",
}

// IsArabic reports whether text is written mostly in Arabic script.
func IsArabic(text string) bool {
	var arabic, latin int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	return arabic > 0 && arabic >= latin
}

// IsEmergency reports whether the question matches a known emergency phrase.
func IsEmergency(question string) bool {
	q := strings.ToLower(question)
	for _, p := range emergencyPhrasesEN {
		if strings.Contains(q, p) {
			return true
		}
	}
	for _, p := range emergencyPhrasesAR {
		if strings.Contains(question, p) {
			return true
		}
	}
	return false
}

// withEmergencyWarning prepends the fixed warning in the question's language unless the answer already starts with it.
func withEmergencyWarning(question, answer string) string {
	if !IsEmergency(question) {
		return answer
	}
	warning := emergencyWarningEN
	if IsArabic(question) {
		warning = emergencyWarningAR
	}
	trimmed := strings.TrimSpace(answer)
	if strings.HasPrefix(trimmed, warning) {
		return answer
	}
	if trimmed == "" {
		return warning
	}
	return warning + "\n\n" + trimmed
}

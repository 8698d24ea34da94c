package churn

import "golang.org/x/text/language"

type messageKey int

const (
	msgTooLarge messageKey = iota
	msgNotFound
	msgInvalidTool
	msgErrorPrefix
	msgSQLErrorPrefix
	msgNoResults
	msgNoMatches
	msgNoneAboveThreshold
)

var catalog = map[language.Tag]map[messageKey]string{
	language.English: {
		msgTooLarge:           "Error: Input too large, even after truncating history. Please shorten your query or clear chat history.",
		msgNotFound:           "Customer data not found or invalid.",
		msgInvalidTool:        "Invalid query type.",
		msgErrorPrefix:        "Error: ",
		msgSQLErrorPrefix:     "SQL Error: ",
		msgNoResults:          "No results found.",
		msgNoMatches:          "No customers found matching the criteria.",
		msgNoneAboveThreshold: "No customers found with churn probability above the threshold.",
	},
	language.Arabic: {
		msgTooLarge:           "خطأ: الإدخال كبير جدًا، حتى بعد تقليص السجل. يرجى تقصير الطلب أو مسح سجل الدردشة.",
		msgNotFound:           "بيانات العميل غير موجودة أو غير صالحة.",
		msgInvalidTool:        "نوع الطلب غير صالح.",
		msgErrorPrefix:        "خطأ: ",
		msgSQLErrorPrefix:     "خطأ SQL: ",
		msgNoResults:          "لا توجد نتائج.",
		msgNoMatches:          "لم يتم العثور على عملاء مطابقين للمعايير.",
		msgNoneAboveThreshold: "لم يتم العثور على عملاء باحتمالية التسرب فوق الحد.",
	},
}

// message returns the localized text for key in the catalog matching lang.
func message(lang string, key messageKey) string {
	return catalog[messageTag(lang)][key]
}

// errorText renders err behind the localized "Error: " prefix.
func errorText(lang string, err error) string {
	return message(lang, msgErrorPrefix) + err.Error()
}

// sqlErrorText renders err behind the localized "SQL Error: " prefix.
func sqlErrorText(lang string, err error) string {
	return message(lang, msgSQLErrorPrefix) + err.Error()
}

// Package i18n holds the user-facing strings herbia returns and the
// language/month names used when prompting the language model.
package i18n

import "strings"

// Message keys
const (
	TooFar         = "tooFar"
	QuotaExhausted = "quotaExhausted"
	GenericFailure = "genericFailure"
	InvalidInput   = "invalidInput"
	BadImage       = "badImage"
	ImageTooLarge  = "imageTooLarge"
)

// DefaultLang is used when no supported language is requested
const DefaultLang = "es"

var messages = map[string]map[string]string{
	"es": {
		TooFar:         "El origen y el destino están demasiado lejos para una sola misión. Elige un tramo de menos de 100 km.",
		QuotaExhausted: "Hemos agotado las sugerencias de hoy. Vuelve a intentarlo mañana.",
		GenericFailure: "Algo ha fallado al preparar las sugerencias. Inténtalo de nuevo.",
		InvalidInput:   "Faltan datos en la solicitud.",
		BadImage:       "Formato de imagen no admitido. Usa JPEG o PNG.",
		ImageTooLarge:  "La imagen es demasiado grande (máximo 5 MB).",
	},
	"fr": {
		TooFar:         "Le départ et l'arrivée sont trop éloignés pour une seule mission. Choisissez une étape de moins de 100 km.",
		QuotaExhausted: "Les suggestions du jour sont épuisées. Réessayez demain.",
		GenericFailure: "Un problème est survenu lors de la préparation des suggestions. Réessayez.",
		InvalidInput:   "Il manque des informations dans la requête.",
		BadImage:       "Format d'image non pris en charge. Utilisez JPEG ou PNG.",
		ImageTooLarge:  "L'image est trop lourde (5 Mo maximum).",
	},
	"en": {
		TooFar:         "Origin and destination are too far apart for one mission. Pick a stretch shorter than 100 km.",
		QuotaExhausted: "Today's suggestions are used up. Try again tomorrow.",
		GenericFailure: "Something went wrong while preparing suggestions. Please try again.",
		InvalidInput:   "The request is missing required fields.",
		BadImage:       "Unsupported image format. Use JPEG or PNG.",
		ImageTooLarge:  "The image is too large (5 MB max).",
	},
}

var languageNames = map[string]string{
	"es": "Spanish",
	"fr": "French",
	"en": "English",
}

var monthNames = [...]string{
	"", "January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Normalize maps a language tag like "fr-FR" or an Accept-Language header to a supported code
func Normalize(lang string) string {
	for _, part := range strings.Split(lang, ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		if i := strings.IndexAny(tag, ";-_"); i >= 0 {
			tag = tag[:i]
		}
		if _, ok := messages[tag]; ok {
			return tag
		}
	}
	return DefaultLang
}

// Message returns the localized text for key
func Message(lang, key string) string {
	if msg, ok := messages[Normalize(lang)][key]; ok {
		return msg
	}
	return messages[DefaultLang][key]
}

// LanguageName returns the English name of the language, for prompts
func LanguageName(lang string) string {
	return languageNames[Normalize(lang)]
}

// MonthName returns the English month name for 1-12, or "" otherwise
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return monthNames[month]
}

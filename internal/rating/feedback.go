package rating

import "github.com/Clark-Hu/lopperater/internal/domain"

// EncouragementMessage picks the feedback shown to a seller for one rating.
func EncouragementMessage(scores domain.Scores) string {
	switch mean := scores.Mean(); {
	case mean >= 8:
		return "Fantastisk bod! Rigtig flot arbejde 🌟"
	case mean >= 6:
		return "God bod med potentiale for at blive endnu bedre! 👍"
	case mean >= 4:
		return "Din bod har potentiale - prøv at fokusere på færre, mere unikke ting 💡"
	default:
		return "Tak for at deltage! Små justeringer kan gøre en stor forskel 🌱"
	}
}

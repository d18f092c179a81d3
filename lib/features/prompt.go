package features

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

const countPattern = `(\d+|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)`

var (
	raysRe    = regexp.MustCompile(countPattern + `\s+rays?\b`)
	petalsRe  = regexp.MustCompile(countPattern + `\s+petals?\b`)
	clockRe   = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	oclockRe  = regexp.MustCompile(countPattern + `\s*o'?\s?clock\b`)
	stickRe   = regexp.MustCompile(`\bstick[\s-]?(figure|man|person)\b`)
	armsUpRe  = regexp.MustCompile(`\b(arms? (raised|up)|raised arms?|hands? up)\b`)
	eyeShutRe = regexp.MustCompile(`\b(eyes? (closed|shut)|closed eyes?|wink(ing)?)\b`)
)

func parseCount(s string) (int, bool) {
	if n, ok := numberWords[s]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

type wordSet map[string]bool

func words(text string) wordSet {
	result := wordSet{}
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		result[w] = true
	}
	return result
}

// has matches word in singular or plural form.
func (ws wordSet) has(word string) bool {
	return ws[word] || ws[word+"s"] || ws[word+"es"]
}

// ExpectedFromPrompt maps a natural language drawing prompt to the features a
// matching drawing should have. The mapping is keyword based and
// deterministic. Prompts it does not recognize yield an empty set.
func ExpectedFromPrompt(prompt string) Features {
	text := strings.ToLower(strings.TrimSpace(prompt))
	ws := words(text)
	result := Features{}

	switch {
	case ws.has("sun"):
		result[KeyShape] = ShapeCircle
		if m := raysRe.FindStringSubmatch(text); m != nil {
			if n, ok := parseCount(m[1]); ok {
				result[KeyRays] = strconv.Itoa(n)
			}
		}
	case ws.has("house"):
		result[KeyShape] = ShapeHouse
		if ws.has("chimney") {
			result[KeyChimney] = "true"
		}
	case ws.has("flower"):
		result[KeyShape] = ShapeFlower
		if m := petalsRe.FindStringSubmatch(text); m != nil {
			if n, ok := parseCount(m[1]); ok {
				result[KeyPetals] = strconv.Itoa(n)
			}
		}
	case stickRe.MatchString(text):
		result[KeyShape] = ShapeStickFigure
		if armsUpRe.MatchString(text) {
			result[KeyArmsRaised] = "true"
		}
	case ws.has("cat"):
		result[KeyShape] = ShapeCat
		if ws.has("whisker") {
			result[KeyWhiskers] = "true"
		}
	case ws.has("clock"):
		result[KeyShape] = ShapeClock
		if m := clockRe.FindStringSubmatch(text); m != nil {
			h, _ := strconv.Atoi(m[1])
			result[KeyTime] = strconv.Itoa(h) + ":" + m[2]
		} else if m := oclockRe.FindStringSubmatch(text); m != nil {
			if h, ok := parseCount(m[1]); ok {
				result[KeyTime] = strconv.Itoa(h) + ":00"
			}
		}
	case ws.has("face"):
		result[KeyShape] = ShapeFace
		if eyeShutRe.MatchString(text) {
			result[KeyEyeClosed] = "true"
		}
	default:
		for _, shape := range []string{ShapeTriangle, ShapeSquare, ShapeRectangle, ShapePentagon, ShapeCircle} {
			if ws.has(shape) {
				result[KeyShape] = shape
				break
			}
		}
	}

	return result
}

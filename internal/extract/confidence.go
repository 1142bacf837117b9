package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	reDate = regexp.MustCompile(`\b(19|20)\d{2}\b|\b\d{1,2}[./-]\d{1,2}[./-]\d{2,4}\b`)
	reWord = regexp.MustCompile(`\b[a-zA-Z]{4,}\b`)
)

func hasDatePattern(s string) bool { return reDate.MatchString(s) }

// naive heuristic confidence based on decoded text characteristics
func heuristicConfidence(txt string) float32 {
	score := float32(0.2) // base
	if hasDatePattern(txt) {
		score += 0.2
	}
	if len(reWord.FindAllString(txt, 6)) >= 5 {
		score += 0.2 // enough real words, not line noise
	}
	if letterRatio(txt) > 0.6 {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// letterRatio is the share of letters among non-space runes.
func letterRatio(s string) float64 {
	var letters, total int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(letters) / float64(total)
}

// blend: weight OCR confidence higher when present
func blendConfidence(ocrConf, heurConf float32) float32 {
	var conf float32
	if ocrConf > 0 {
		conf = 0.7*ocrConf + 0.3*heurConf
	} else {
		conf = heurConf
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

func mean(vals []float32) float32 {
	if len(vals) == 0 {
		return 0
	}
	var sum float32
	for _, v := range vals {
		sum += v
	}
	return sum / float32(len(vals))
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

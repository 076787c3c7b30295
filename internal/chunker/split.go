package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var sentenceRe = regexp.MustCompile(`(?m)(?U)[^.!?]+[.!?]+`)

// splitText splits text into chunks of at most maxChars, preferring
// paragraph breaks, then sentence breaks, with a hard cut only for a single
// sentence longer than maxChars. Output is a pure function of the input so
// re-indexing unchanged text yields byte-identical chunks.
func splitText(text string, maxChars int) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if len(clean) <= maxChars {
		return []string{clean}
	}

	var chunks []string
	current := ""

	flush := func() {
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
	}

	for _, para := range splitParagraphs(clean) {
		for _, sent := range splitSentences(para) {
			for len(sent) > maxChars {
				// Back the cut up to a rune boundary so multi-byte text
				// stays valid UTF-8 on both sides.
				cut := maxChars
				for cut > 0 && !utf8.RuneStart(sent[cut]) {
					cut--
				}
				if cut == 0 {
					cut = maxChars
				}
				flush()
				chunks = append(chunks, sent[:cut])
				sent = strings.TrimSpace(sent[cut:])
			}
			if sent == "" {
				continue
			}
			if current == "" {
				current = sent
			} else if len(current)+1+len(sent) <= maxChars {
				current += " " + sent
			} else {
				flush()
				current = sent
			}
		}
	}
	flush()
	return chunks
}

func splitParagraphs(text string) []string {
	var paras []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

func splitSentences(para string) []string {
	matches := sentenceRe.FindAllStringIndex(para, -1)
	if len(matches) == 0 {
		return []string{strings.TrimSpace(para)}
	}
	var sentences []string
	last := 0
	for _, m := range matches {
		s := strings.TrimSpace(para[m[0]:m[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		last = m[1]
	}
	// Trailing text without terminal punctuation still belongs to the
	// section.
	if tail := strings.TrimSpace(para[last:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

package service

import (
	"regexp"
	"strings"
)

var paragraphSplitPattern = regexp.MustCompile(`\n\s*\n`)

// ChunkText 将长文本按字符长度切片，支持 overlap。
// 优先在段落边界分割以保持语义完整性，超长单段落按固定步长强制切分。
// 长度按 rune 计，避免把多字节字符切成半个。
func ChunkText(text string, chunkSize, chunkOverlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}

	paragraphs := paragraphSplitPattern.Split(text, -1)
	var chunks []string
	current := ""

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		// 当前块装不下新段落时先封块，末尾 overlap 部分带入下一块
		if current != "" && runeLen(current)+runeLen(para)+1 > chunkSize {
			chunks = append(chunks, strings.TrimSpace(current))
			if chunkOverlap > 0 && runeLen(current) > chunkOverlap {
				current = tailRunes(current, chunkOverlap) + "\n" + para
			} else {
				current = para
			}
		} else if current != "" {
			current = strings.TrimSpace(current + "\n" + para)
		} else {
			current = para
		}
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	// 超长单段落强制分割
	var final []string
	step := chunkSize - chunkOverlap
	for _, chunk := range chunks {
		runes := []rune(chunk)
		if len(runes) <= chunkSize {
			final = append(final, chunk)
			continue
		}
		for i := 0; i < len(runes); i += step {
			end := i + chunkSize
			if end > len(runes) {
				end = len(runes)
			}
			piece := strings.TrimSpace(string(runes[i:end]))
			if piece != "" {
				final = append(final, piece)
			}
		}
	}
	return final
}

func runeLen(s string) int {
	return len([]rune(s))
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

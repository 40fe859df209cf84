package toy

import (
	"fmt"
	"strings"

	"github.com/samcharles93/chatloop/internal/engine"
)

// The vocabulary is every byte value followed by the control tokens.
const (
	TokenBOS engine.Token = 256 + iota
	TokenEOS
	TokenIMStart
	TokenIMEnd

	VocabSize = 260
)

var specials = []struct {
	id   engine.Token
	text string
}{
	{TokenBOS, "<s>"},
	{TokenEOS, "</s>"},
	{TokenIMStart, "<|im_start|>"},
	{TokenIMEnd, "<|im_end|>"},
}

// Tokenizer maps text to byte tokens, recognising control tokens written
// in the text when asked to.
type Tokenizer struct{}

func (Tokenizer) Tokenize(text string, addSpecial, parseSpecial bool) ([]engine.Token, error) {
	ids := make([]engine.Token, 0, len(text)+1)
	if addSpecial {
		ids = append(ids, TokenBOS)
	}
	for i := 0; i < len(text); {
		if parseSpecial {
			if id, n, ok := matchSpecial(text[i:]); ok {
				ids = append(ids, id)
				i += n
				continue
			}
		}
		ids = append(ids, engine.Token(text[i]))
		i++
	}
	return ids, nil
}

func matchSpecial(s string) (engine.Token, int, bool) {
	if len(s) == 0 || s[0] != '<' {
		return 0, 0, false
	}
	for _, sp := range specials {
		if strings.HasPrefix(s, sp.text) {
			return sp.id, len(sp.text), true
		}
	}
	return 0, 0, false
}

// TokenToPiece renders control tokens only when special is set.
func (Tokenizer) TokenToPiece(id engine.Token, special bool) (string, error) {
	switch {
	case id >= 0 && id < 256:
		return string([]byte{byte(id)}), nil
	case id < VocabSize:
		if !special {
			return "", nil
		}
		for _, sp := range specials {
			if sp.id == id {
				return sp.text, nil
			}
		}
	}
	return "", fmt.Errorf("token %d out of vocabulary", id)
}

func (Tokenizer) IsEOG(id engine.Token) bool {
	return id == TokenEOS || id == TokenIMEnd
}

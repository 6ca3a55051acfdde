// tokenizer.go - CLIP BPE-Tokenizer (vocab.json + merges.txt)
//
// Enthaelt:
// - Load: Laedt das GPT-Style Format aus einem Modell-Verzeichnis
// - Encode: Text zu Token-IDs mit BOS/EOS und Padding auf Kontextlaenge
// - Decode: Token-IDs zurueck zu Text
//
// CLIP-Besonderheiten gegenueber GPT-2: Eingabe wird kleingeschrieben
// und Whitespace kollabiert, das letzte Zeichen jedes Worts traegt den
// Wortende-Marker </w>, gepaddet wird mit dem EOS-Token.
package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// ContextLength ist die feste Sequenzlaenge des CLIP Text-Encoders
	ContextLength = 77

	bosToken = "<|startoftext|>"
	eosToken = "<|endoftext|>"
	wordEnd  = "</w>"
)

// clipPattern trennt Kontraktionen, Woerter, Ziffern und Satzzeichen.
// Die Eingabe ist zu diesem Zeitpunkt bereits kleingeschrieben.
var clipPattern = regexp.MustCompile(`'s|'t|'re|'ve|'m|'ll|'d|\p{L}+|\p{N}|[^\s\p{L}\p{N}]+`)

// Byte-Level-Encoding wie bei GPT-2: jedes Byte wird auf eine
// druckbare Rune abgebildet, damit der BPE-Vokabular-Lookup auf
// Strings arbeiten kann.
var (
	byteEncoder [256]rune
	byteDecoder map[rune]byte
)

func init() {
	n := 0
	byteDecoder = make(map[rune]byte, 256)
	for b := 0; b < 256; b++ {
		r := rune(b)
		printable := (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
		if !printable {
			r = rune(256 + n)
			n++
		}
		byteEncoder[b] = r
		byteDecoder[r] = byte(b)
	}
}

// Tokenizer kapselt Vokabular und Merge-Raenge
type Tokenizer struct {
	encoder map[string]int32
	decoder []string
	merges  map[string]int
	bos     int32
	eos     int32
}

// Load laedt einen Tokenizer aus vocab.json + merges.txt
func Load(dir string) (*Tokenizer, error) {
	vocabData, err := os.ReadFile(filepath.Join(dir, "vocab.json"))
	if err != nil {
		return nil, fmt.Errorf("vocab.json lesen fehlgeschlagen: %w", err)
	}

	vocabMap := make(map[string]int32)
	if err := json.Unmarshal(vocabData, &vocabMap); err != nil {
		return nil, fmt.Errorf("vocab.json parsen fehlgeschlagen: %w", err)
	}

	mergesData, err := os.ReadFile(filepath.Join(dir, "merges.txt"))
	if err != nil {
		return nil, fmt.Errorf("merges.txt lesen fehlgeschlagen: %w", err)
	}

	t := &Tokenizer{
		encoder: vocabMap,
		decoder: make([]string, len(vocabMap)),
		merges:  make(map[string]int),
	}

	// Merge-Raenge aufbauen, Kommentar-Zeilen ueberspringen
	rank := 0
	for _, line := range strings.Split(string(mergesData), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t.merges[line] = rank
		rank++
	}

	// Decoder-Array aufbauen
	for token, id := range vocabMap {
		if int(id) >= len(t.decoder) {
			grown := make([]string, id+1)
			copy(grown, t.decoder)
			t.decoder = grown
		}
		t.decoder[id] = token
	}

	bos, ok := vocabMap[bosToken]
	if !ok {
		return nil, fmt.Errorf("vokabular ohne %s token", bosToken)
	}
	eos, ok := vocabMap[eosToken]
	if !ok {
		return nil, fmt.Errorf("vokabular ohne %s token", eosToken)
	}
	t.bos, t.eos = bos, eos

	return t, nil
}

// Encode tokenisiert einen Prompt zu genau ContextLength Token-IDs:
// [BOS, tokens..., EOS, EOS-Padding...]. Zu lange Prompts werden
// abgeschnitten.
func (t *Tokenizer) Encode(text string) []int32 {
	ids := make([]int32, 0, ContextLength)
	ids = append(ids, t.bos)

	for _, word := range clipPattern.FindAllString(cleanText(text), -1) {
		ids = t.encodeWordInto(word, ids)
		if len(ids) >= ContextLength-1 {
			ids = ids[:ContextLength-1]
			break
		}
	}

	ids = append(ids, t.eos)
	for len(ids) < ContextLength {
		ids = append(ids, t.eos)
	}
	return ids
}

// cleanText normalisiert den Prompt: Whitespace kollabieren, lowercase
func cleanText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// encodeWordInto haengt die BPE-Tokens eines Worts an ids an
func (t *Tokenizer) encodeWordInto(word string, ids []int32) []int32 {
	if word == "" {
		return ids
	}

	// Bytes auf druckbare Runen abbilden
	var sb strings.Builder
	sb.Grow(len(word) * 2)
	for i := 0; i < len(word); i++ {
		sb.WriteRune(byteEncoder[word[i]])
	}
	encoded := sb.String()

	// Schneller Pfad: ganzes Wort ist ein einzelnes Token
	if id, ok := t.encoder[encoded+wordEnd]; ok {
		return append(ids, id)
	}

	return t.mergeBPE(encoded, ids)
}

// mergeBPE wendet den BPE-Merge-Algorithmus an: wiederholt das Paar
// mit dem niedrigsten Rang verschmelzen, bis nichts mehr geht.
// Das letzte Zeichen traegt den Wortende-Marker.
func (t *Tokenizer) mergeBPE(encoded string, ids []int32) []int32 {
	runes := []rune(encoded)
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = string(r)
	}
	parts[len(parts)-1] += wordEnd

	for len(parts) > 1 {
		minRank := int(^uint(0) >> 1)
		minIdx := -1

		for i := 0; i < len(parts)-1; i++ {
			if rank, ok := t.merges[parts[i]+" "+parts[i+1]]; ok && rank < minRank {
				minRank = rank
				minIdx = i
			}
		}

		if minIdx < 0 {
			break
		}

		parts[minIdx] = parts[minIdx] + parts[minIdx+1]
		parts = append(parts[:minIdx+1], parts[minIdx+2:]...)
	}

	for _, part := range parts {
		if id, ok := t.encoder[part]; ok {
			ids = append(ids, id)
		}
		// Unbekannte Teile werden verworfen, CLIP hat keine Byte-Fallback-Tokens
	}

	return ids
}

// Decode konvertiert Token-IDs zurueck zu Text. BOS/EOS werden
// uebersprungen, der Wortende-Marker wird zu einem Leerzeichen.
func (t *Tokenizer) Decode(ids []int32) string {
	var sb strings.Builder

	for _, id := range ids {
		if id == t.bos || id == t.eos || int(id) >= len(t.decoder) {
			continue
		}

		token := t.decoder[id]
		token, ended := strings.CutSuffix(token, wordEnd)
		for _, r := range token {
			if b, ok := byteDecoder[r]; ok {
				sb.WriteByte(b)
			}
		}
		if ended {
			sb.WriteByte(' ')
		}
	}

	return strings.TrimSpace(sb.String())
}

// BOS gibt die ID des Start-Tokens zurueck
func (t *Tokenizer) BOS() int32 { return t.bos }

// EOS gibt die ID des Ende-Tokens zurueck
func (t *Tokenizer) EOS() int32 { return t.eos }

package disasm

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/srikur/chip8/cpu"
)

func TestDisassemble(t *testing.T) {
	tests := []struct {
		name     string
		word     uint16
		expected string
	}{
		{"clear screen", 0x00e0, "CLS"},
		{"return", 0x00ee, "RET"},
		{"jump", 0x1234, "JP $234"},
		{"call", 0x2300, "CALL $300"},
		{"skip equal byte", 0x3234, "SE V2, $34"},
		{"skip not equal byte", 0x4a01, "SNE VA, $01"},
		{"skip equal register", 0x5120, "SE V1, V2"},
		{"load byte", 0x6c7f, "LD VC, $7F"},
		{"add byte", 0x7101, "ADD V1, $01"},
		{"load register", 0x8010, "LD V0, V1"},
		{"xor", 0x8453, "XOR V4, V5"},
		{"subtract reverse", 0x8127, "SUBN V1, V2"},
		{"shift right", 0x8016, "SHR V0, V1"},
		{"skip not equal register", 0x9ab0, "SNE VA, VB"},
		{"load index", 0xa234, "LD I, $234"},
		{"jump offset", 0xb200, "JP V0, $200"},
		{"random", 0xc3ff, "RND V3, $FF"},
		{"draw", 0xd12f, "DRW V1, V2, $F"},
		{"skip pressed", 0xe59e, "SKP V5"},
		{"skip not pressed", 0xe5a1, "SKNP V5"},
		{"load delay", 0xf207, "LD V2, DT"},
		{"wait key", 0xf20a, "LD V2, K"},
		{"set delay", 0xf215, "LD DT, V2"},
		{"set sound", 0xf218, "LD ST, V2"},
		{"add index", 0xf21e, "ADD I, V2"},
		{"glyph", 0xf229, "LD F, V2"},
		{"bcd", 0xf233, "LD B, V2"},
		{"store registers", 0xf755, "LD [I], V7"},
		{"load registers", 0xf765, "LD V7, [I]"},
		{"unknown arithmetic", 0x800f, "DW $800F"},
		{"unknown transfer", 0xffff, "DW $FFFF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m cpu.Memory
			m.StoreBytes(0x200, []byte{byte(tt.word >> 8), byte(tt.word)})

			line, next := Disassemble(&m, 0x200)
			assert.Equal(t, tt.expected, line)
			assert.Equal(t, uint16(0x202), next)
		})
	}
}

func TestDisassembleWraps(t *testing.T) {
	var m cpu.Memory
	m.StoreBytes(0xfff, []byte{0x00, 0xe0})

	line, next := Disassemble(&m, 0xfff)
	assert.Equal(t, "CLS", line)
	assert.Equal(t, uint16(0x001), next)
}

func TestGetRegisterString(t *testing.T) {
	var r cpu.Registers
	r.Init()
	r.V[0xa] = 0x5c
	r.I = 0x123
	r.DT = 0x3c

	s := GetRegisterString(&r)
	assert.Contains(t, s, "V0=00 ")
	assert.Contains(t, s, "VA=5C ")
	assert.Contains(t, s, "I=123 PC=200 SP=0 DT=3C ST=00")
}

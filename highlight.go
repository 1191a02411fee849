package main

import (
	"html"
	"strings"

	terminal "github.com/buildkite/terminal-to-html/v3"
)

// Token classes, used as CSS class suffixes
const (
	TokenSymbol      = "symbol"
	TokenString      = "string"
	TokenNumber      = "number"
	TokenRegister    = "register"
	TokenInstruction = "instruction"
	TokenComment     = "comment"
	TokenOperator    = "operator"
)

const tokenClassPrefix = "compiler-explorer-"

var registers = func() map[string]bool {
	names := strings.Fields(`
		rax rbx rcx rdx rsi rdi rbp rsp r8 r9 r10 r11 r12 r13 r14 r15
		eax ebx ecx edx esi edi ebp esp r8d r9d r10d r11d r12d r13d r14d r15d
		ax bx cx dx si di bp sp r8w r9w r10w r11w r12w r13w r14w r15w
		al ah bl bh cl ch dl dh sil dil bpl spl r8b r9b r10b r11b r12b r13b r14b r15b
		xmm0 xmm1 xmm2 xmm3 xmm4 xmm5 xmm6 xmm7 xmm8 xmm9 xmm10 xmm11 xmm12 xmm13 xmm14 xmm15
		xmm16 xmm17 xmm18 xmm19 xmm20 xmm21 xmm22 xmm23 xmm24 xmm25 xmm26 xmm27 xmm28 xmm29 xmm30 xmm31
		ymm0 ymm1 ymm2 ymm3 ymm4 ymm5 ymm6 ymm7 ymm8 ymm9 ymm10 ymm11 ymm12 ymm13 ymm14 ymm15
		zmm0 zmm1 zmm2 zmm3 zmm4 zmm5 zmm6 zmm7 zmm8 zmm9 zmm10 zmm11 zmm12 zmm13 zmm14 zmm15
		st0 st1 st2 st3 st4 st5 st6 st7 mm0 mm1 mm2 mm3 mm4 mm5 mm6 mm7
		k0 k1 k2 k3 k4 k5 k6 k7 bnd0 bnd1 bnd2 bnd3 bndcfgu bndstatus
		cs ds es fs gs ss fs.base gs.base
		cr0 cr2 cr3 cr4 cr8 dr0 dr1 dr2 dr3 dr6 dr7 tr ldtr xcr0
		rip eip ip eflags rflags mxcsr pkru x87
	`)
	table := make(map[string]bool, len(names))
	for _, name := range names {
		table[name] = true
	}
	return table
}()

func isOperator(c byte) bool {
	return strings.IndexByte("+-*/%&|^<>~!:,[]#;", c) >= 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Highlight classifies one line of x86 assembly into HTML spans. An indented
// line starts with an instruction, a line at column 0 with a label.
func Highlight(line string) string {
	var out strings.Builder
	instructionFirst := len(line) > 0 && isSpace(line[0])
	firstToken := true

	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case isSpace(c):
			out.WriteByte(c)
			i++

		case c == ';' || c == '#':
			writeToken(&out, TokenComment, line[i:])
			i = len(line)

		case isOperator(c):
			writeToken(&out, TokenOperator, line[i:i+1])
			i++

		case c == '"':
			j := i + 1
			for j < len(line) && line[j] != '"' {
				if line[j] == '\\' && j+1 < len(line) {
					j++
				}
				j++
			}
			if j < len(line) {
				j++
			}
			writeToken(&out, TokenString, line[i:j])
			i = j

		case isDigit(c):
			j := i + 1
			for j < len(line) && isDigit(line[j]) {
				j++
			}
			writeToken(&out, TokenNumber, line[i:j])
			i = j

		default:
			j := i + 1
			for j < len(line) && !isSpace(line[j]) && !isOperator(line[j]) {
				j++
			}
			word := line[i:j]
			switch {
			case firstToken && instructionFirst:
				writeToken(&out, TokenInstruction, word)
			case firstToken:
				writeToken(&out, TokenSymbol, word)
			case registers[word]:
				writeToken(&out, TokenRegister, word)
			default:
				writeToken(&out, TokenSymbol, word)
			}
			firstToken = false
			i = j
		}
	}
	return out.String()
}

func writeToken(out *strings.Builder, class, text string) {
	out.WriteString(`<span class="`)
	out.WriteString(tokenClassPrefix)
	out.WriteString(class)
	out.WriteString(`">`)
	out.WriteString(html.EscapeString(text))
	out.WriteString(`</span>`)
}

// ConsoleHTML renders compiler or program output, which may carry ANSI
// color escapes
func ConsoleHTML(text string) string {
	return string(terminal.Render([]byte(text)))
}

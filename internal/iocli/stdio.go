package iocli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio реализует IO поверх потоков процесса
// Пароль читается без эха, если ввод идет с терминала
type Stdio struct {
	in    *bufio.Reader
	out   io.Writer
	stdin *os.File
}

// NewStdio создает IO поверх произвольных потоков
func NewStdio(in io.Reader, out io.Writer) *Stdio {
	s := &Stdio{
		in:  bufio.NewReader(in),
		out: out,
	}
	if f, ok := in.(*os.File); ok {
		s.stdin = f
	}
	return s
}

func (s *Stdio) Println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	return s.readLine()
}

func (s *Stdio) ReadPassword(prompt string) (string, error) {
	s.Printf("%s", prompt)

	if s.stdin != nil && term.IsTerminal(int(s.stdin.Fd())) {
		pwBytes, err := term.ReadPassword(int(s.stdin.Fd()))
		s.Println("")
		if err != nil {
			return "", err
		}
		return string(pwBytes), nil
	}

	return s.readLine()
}

func (s *Stdio) readLine() (string, error) {
	input, err := s.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimRight(input, "\r\n"), nil
}

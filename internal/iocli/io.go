// Package iocli абстрагирует ввод-вывод консольных команд
package iocli

//go:generate moq -out io_mock.go . IO

// IO ввод-вывод интерактивной команды
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
}

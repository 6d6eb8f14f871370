package lwp

import (
	"fmt"
	"strconv"
	"strings"
)

// HexToBytes преобразует hex строку в байты ("0c 00 81", "0x0c,0x00", "0c:00")
func HexToBytes(hexStr string) ([]byte, error) {
	// Убираем пробелы и другие разделители
	hexStr = strings.ReplaceAll(hexStr, "0x", "")
	hexStr = strings.ReplaceAll(hexStr, "\\x", "")
	for _, sep := range []string{" ", ",", ":", "\t", "\n"} {
		hexStr = strings.ReplaceAll(hexStr, sep, "")
	}

	if hexStr == "" {
		return nil, fmt.Errorf("%w: пустая hex строка", ErrInvalidParameter)
	}

	// Проверяем четность длины
	if len(hexStr)%2 != 0 {
		hexStr = "0" + hexStr
	}

	data := make([]byte, len(hexStr)/2)
	for i := 0; i < len(hexStr); i += 2 {
		hexByte := hexStr[i : i+2]
		b, err := strconv.ParseUint(hexByte, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: неверный hex байт '%s'", ErrInvalidParameter, hexByte)
		}
		data[i/2] = byte(b)
	}

	return data, nil
}

// BytesToHex преобразует байты в hex строку вида "0C 00 81"
func BytesToHex(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	hexStr := make([]string, len(data))
	for i, b := range data {
		hexStr[i] = fmt.Sprintf("%02X", b)
	}

	return strings.Join(hexStr, " ")
}

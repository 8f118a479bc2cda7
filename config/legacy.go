package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoModelDefine is returned when a legacy config has no MODEL define
var ErrNoModelDefine = errors.New("MODEL not found in config")

// ReadLegacyModel reads the model file name from a firmware style
// config.txt
func ReadLegacyModel(path string) (string, error) {

	f, err := os.Open(path)

	if err != nil {
		return "", fmt.Errorf("config file not found: %w", err)
	}

	defer f.Close()

	return ParseLegacyModel(f)
}

// ParseLegacyModel returns the quoted value of the first line starting with
// #define that mentions MODEL, such as
//
//	#define MODEL "wasp_int8.tflite"
func ParseLegacyModel(r io.Reader) (string, error) {

	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := scanner.Text()

		if !strings.HasPrefix(line, "#define") || !strings.Contains(line, "MODEL") {
			continue
		}

		q1 := strings.IndexByte(line, '"')

		if q1 < 0 {
			continue
		}

		q2 := strings.IndexByte(line[q1+1:], '"')

		if q2 <= 0 {
			continue
		}

		return line[q1+1 : q1+1+q2], nil
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading config: %w", err)
	}

	return "", ErrNoModelDefine
}

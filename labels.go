package hazardwatch

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadLabels reads the hazard class labels the Model was trained on from the
// given text file. It should contain one label per line.
func LoadLabels(file string) ([]HazardClass, error) {

	// open the file
	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	// create a scanner to read the file.
	scanner := bufio.NewScanner(f)

	var labels []HazardClass

	// read and trim each line
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		labels = append(labels, HazardClass(line))
	}

	// check for errors during scanning
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return labels, nil
}

package classify

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/onnxrun/internal/errs"
)

// Label set names accepted by Labels.
const (
	SetNone     = ""
	SetMNIST    = "mnist"
	SetImageNet = "imagenet"
	SetCustom   = "custom"
)

// LabelSet maps class indices to names.
type LabelSet struct {
	name   string
	labels []string
}

// Digits is the MNIST label set: "0" to "9".
func Digits() *LabelSet {
	labels := make([]string, 10)
	for i := range labels {
		labels[i] = strconv.Itoa(i)
	}
	return &LabelSet{name: SetMNIST, labels: labels}
}

// Labels resolves a label set by name. The imagenet and custom sets are
// read from file, one label per line in class order; no set is bundled.
func Labels(name, file string) (*LabelSet, error) {
	switch strings.ToLower(name) {
	case SetNone:
		if file == "" {
			return &LabelSet{}, nil
		}
		return LoadLabels(SetCustom, file)
	case SetMNIST:
		return Digits(), nil
	case SetImageNet, SetCustom:
		if file == "" {
			return nil, errors.Errorf("label set %q requires a labels file", name)
		}
		return LoadLabels(strings.ToLower(name), file)
	}
	return nil, errors.Errorf("unknown label set %q (want mnist, imagenet or custom)", name)
}

// LoadLabels reads one label per line, in class order. Trailing blank
// lines are ignored.
//
//nolint:gosec // G304: the labels file is named by the user.
func LoadLabels(name, path string) (*LabelSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.IO(err, "open labels %q", path)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.IO(err, "read labels %q", path)
	}
	for len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}
	return &LabelSet{name: name, labels: labels}, nil
}

// Name returns the set name.
func (s *LabelSet) Name() string { return s.name }

// Len returns the number of known labels.
func (s *LabelSet) Len() int { return len(s.labels) }

// Label returns the name of class i, or "class i" when it has none.
func (s *LabelSet) Label(i int) string {
	if s != nil && i >= 0 && i < len(s.labels) && s.labels[i] != "" {
		return s.labels[i]
	}
	return "class " + strconv.Itoa(i)
}

package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/backmassage/exrscan/internal/rules"
	"github.com/backmassage/exrscan/internal/term"
)

// WriteRules prints the active rule set in evaluation order.
func WriteRules(w io.Writer, rs *rules.RuleSet) error {
	setStyling(term.Enabled())

	var b strings.Builder
	fmt.Fprintf(&b, "%sRules%s from %s (%d rules, %s)\n",
		term.Bold, term.NC, rs.Source(), rs.Len(), rs.Fingerprint())

	data := pterm.TableData{{"Priority", "Group", "Match", "Pattern"}}
	for _, r := range rs.Rules() {
		data = append(data, []string{strconv.Itoa(r.Priority), r.Group, string(r.Kind), r.Pattern})
	}
	if err := table(&b, data); err != nil {
		return err
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteRuleTest prints the group each channel name resolves to under rs.
// Names that fall through every rule are highlighted.
func WriteRuleTest(w io.Writer, rs *rules.RuleSet, names []string) error {
	setStyling(term.Enabled())

	var b strings.Builder
	data := pterm.TableData{{"Channel", "Group"}}
	for _, name := range names {
		group := rs.Classify(name)
		if group == rules.Unclassified {
			group = term.Yellow + group + term.NC
		}
		data = append(data, []string{name, group})
	}
	if err := table(&b, data); err != nil {
		return err
	}
	_, err := io.WriteString(w, b.String())
	return err
}

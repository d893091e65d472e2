package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gatehouse-io/gatehouse/internal/authz"
)

type policyRow struct {
	Action string `json:"action"`
	Role   string `json:"role"`
	Grant  string `json:"grant"`
}

// PrintPolicy writes every granted (action, role) pair of p.
func PrintPolicy(w io.Writer, p *authz.Policy, asJSON bool) error {
	rules := p.Rules()
	if asJSON {
		rows := make([]policyRow, 0, len(rules))
		for _, r := range rules {
			rows = append(rows, policyRow{Action: r.Action.String(), Role: string(r.Role), Grant: string(r.Grant)})
		}
		return json.NewEncoder(w).Encode(rows)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ACTION\tROLE\tGRANT")
	for _, r := range rules {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Action, r.Role, r.Grant)
	}
	return tw.Flush()
}

package access

import "strings"

// producerPrefixes are the labels recognized at the start of a description
// line naming the person who produced the expense.
var producerPrefixes = []string{"Producer:", "producer:"}

// ProducerNames extracts producer display names from a free-text description.
// Each line starting with a "Producer:" label contributes one name; names may
// also be comma-separated on a single line.
//
// TODO: replace with an explicit producer_user_id column on invoices; matching
// on display names breaks as soon as two people share a name.
func ProducerNames(description string) []string {
	if description == "" {
		return nil
	}
	var names []string
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimSpace(line)
		for _, prefix := range producerPrefixes {
			if !strings.HasPrefix(line, prefix) {
				continue
			}
			rest := strings.TrimSpace(strings.TrimPrefix(line, prefix))
			for _, name := range strings.Split(rest, ",") {
				if name = strings.TrimSpace(name); name != "" {
					names = append(names, name)
				}
			}
			break
		}
	}
	return names
}

package candidate

import "fmt"

// InsufficientDataError reports a keyword without enough first-page results
// to rank the top three domains.
type InsufficientDataError struct {
	Keyword string
	Have    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("keyword %q has %d first-page results, need 3 for top domain authority", e.Keyword, e.Have)
}

package manifest

import "fmt"

// validateLayers runs the shared layer checks for the root chain and groups.
func validateLayers(ls []Layer, groups map[string]struct{}) error {
	for i := range ls {
		ls[i].normalize()
		if err := ls[i].validate(); err != nil {
			return fmt.Errorf("layer %d (%s %s): %w", i, orAny(ls[i].Method), orAny(ls[i].Route), err)
		}
		if ls[i].Handler.Type == HandlerGroup {
			if _, ok := groups[ls[i].Handler.Name]; !ok {
				return fmt.Errorf("layer %d: group %q not declared", i, ls[i].Handler.Name)
			}
		}
	}
	return nil
}

func orAny(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

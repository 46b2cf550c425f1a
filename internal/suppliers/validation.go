package suppliers

import (
	"fmt"
	"strings"
)

func (s *Service) validate(input SupplierInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: supplier name is required", ErrInvalidInput)
	}
	for _, item := range input.Items {
		if err := validateItem(item); err != nil {
			return err
		}
	}
	return nil
}

func validateItem(item ItemWithVariants) error {
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("%w: item name is required", ErrInvalidInput)
	}
	for _, v := range item.Variants {
		if strings.TrimSpace(v.Label) == "" {
			return fmt.Errorf("%w: variant label is required", ErrInvalidInput)
		}
		if v.Price < 0 {
			return fmt.Errorf("%w: variant price must be >= 0", ErrInvalidInput)
		}
	}
	return nil
}

func validateCrewIssue(input CrewIssueInput) error {
	if strings.TrimSpace(input.CrewName) == "" || input.IssuedDate == "" {
		return fmt.Errorf("%w: crew name and issue date are required", ErrInvalidInput)
	}
	if len(input.Lines) == 0 {
		return fmt.Errorf("%w: at least one item required", ErrInvalidInput)
	}
	for i, line := range input.Lines {
		if line.SupplierID == "" || strings.TrimSpace(line.ItemName) == "" || line.Variant == "" {
			return fmt.Errorf("%w: line %d is incomplete", ErrInvalidInput, i+1)
		}
		if line.Quantity < 1 {
			return fmt.Errorf("%w: line %d quantity must be at least 1", ErrInvalidInput, i+1)
		}
	}
	return nil
}

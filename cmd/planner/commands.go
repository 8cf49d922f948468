package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"travel-planner/markers"
	"travel-planner/models"
	"travel-planner/registry"
)

var (
	location string
	pick     int
	listName string
	category string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search places near the default location",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		candidates, err := gateway.SearchNear(cmd.Context(), strings.Join(args, " "), location)
		if err != nil {
			return err
		}
		printCandidates(cmd.OutOrStdout(), candidates)
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <query>",
	Short: "Search and add one result to a list",
	Long: `Search for <query> and add the --pick'th result (1-based) to --list.
Places added straight to visited get --category, or "outro" if none is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		candidates, err := gateway.SearchNear(cmd.Context(), strings.Join(args, " "), location)
		if err != nil {
			return err
		}
		if pick < 1 || pick > len(candidates) {
			return fmt.Errorf("no result %d (%d found)", pick, len(candidates))
		}
		op, err := reg.AddSuggestion(candidates[pick-1], models.List(listName), category)
		if err != nil {
			return err
		}
		return report(cmd, op, "added")
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show both collections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LIST\tKEY\tNAME\tCATEGORY\tSTATE")
		for _, group := range []struct {
			list    models.List
			entries []registry.Entry
		}{
			{models.ListWantToGo, reg.WantToGo()},
			{models.ListVisited, reg.Visited()},
		} {
			for _, e := range group.entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", group.list, e.Key, e.Place.Name, e.Place.Category, e.State)
			}
		}
		return w.Flush()
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <key> <wantToGo|visited>",
	Short: "Move a place to the other list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := reg.MoveTo(args[0], models.List(args[1]))
		if err != nil {
			return err
		}
		return report(cmd, op, "moved")
	},
}

var categorizeCmd = &cobra.Command{
	Use:   "categorize <key> <category>",
	Short: "Set a place's category, marking it visited",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := reg.Categorize(args[0], args[1])
		if err != nil {
			return err
		}
		return report(cmd, op, "categorized")
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a place once the ledger confirms",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := reg.Delete(args[0])
		if err != nil {
			return err
		}
		return report(cmd, op, "deleted")
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Resubmit places the ledger has not confirmed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return reg.Reconcile(cmd.Context())
	},
}

var markersCmd = &cobra.Command{
	Use:   "markers",
	Short: "Print map markers as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wantToGo, visited := reg.Collections()
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Center  markers.LatLng   `json:"center"`
			Markers []markers.Marker `json:"markers"`
		}{markers.Center, markers.Markers(wantToGo, visited)})
	},
}

func init() {
	searchCmd.Flags().StringVar(&location, "location", "", "City to search in (default DEFAULT_LOCATION)")
	addCmd.Flags().StringVar(&location, "location", "", "City to search in (default DEFAULT_LOCATION)")
	addCmd.Flags().IntVar(&pick, "pick", 1, "Which search result to add")
	addCmd.Flags().StringVar(&listName, "list", string(models.ListWantToGo), "wantToGo or visited")
	addCmd.Flags().StringVar(&category, "category", "", "Category (restaurante, estadio, ponto, shopping, outro)")
}

// report waits for the ledger to confirm op. A failed confirmation is printed,
// not returned: the local change has already been kept or reverted.
func report(cmd *cobra.Command, op *registry.Op, verb string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	place, err := op.Wait(ctx)
	if err != nil {
		if verb == "deleted" {
			// Deletes apply only after confirmation, so the place is still listed.
			fmt.Fprintf(cmd.ErrOrStderr(), "kept %s, ledger did not confirm the delete: %v\n", op.Key(), err)
			return nil
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s locally, ledger did not confirm: %v\n", verb, err)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", verb, place.Name, keyOf(op, place))
	return nil
}

func keyOf(op *registry.Op, place models.Place) string {
	if place.ID != "" {
		return place.ID
	}
	return op.Key()
}

func printCandidates(w io.Writer, candidates []models.Candidate) {
	if len(candidates) == 0 {
		fmt.Fprintln(w, "no places found")
		return
	}
	for i, c := range candidates {
		fmt.Fprintf(w, "%2d. %s, %s (%.4f, %.4f)\n", i+1, c.Name, c.Address, c.Lat, c.Lng)
	}
}

// Command occmatch is a CLI for scoring occurrence pairs and dumping
// stored decisions, translating the original system's ad-hoc
// two-occurrence comparison workflow and dump.py's batch export.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/colorstring"
	"github.com/schollz/progressbar/v2"

	"github.com/bitem-heg-geneve/occmatch/internal/store"
	"github.com/bitem-heg-geneve/occmatch/pkg/config"
	"github.com/bitem-heg-geneve/occmatch/pkg/matching"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "score":
		err = runScore(os.Args[2:])
	case "dump":
		err = runDump(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, colorstring.Color("[red]error:[reset] "+err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: occmatch score <subject.json> <related.json>")
	fmt.Fprintln(os.Stderr, "       occmatch dump <output.json>")
}

func runScore(args []string) error {
	if len(args) != 2 {
		usage()
		os.Exit(2)
	}

	subject, err := readOccurrence(args[0])
	if err != nil {
		return err
	}
	related, err := readOccurrence(args[1])
	if err != nil {
		return err
	}

	result, err := matching.Score(subject, related)
	if err != nil {
		return err
	}

	for field, score := range result {
		if field == matching.GlobalKey {
			continue
		}
		printScoreLine(field, score)
	}
	printScoreLine(matching.GlobalKey, result[matching.GlobalKey])
	return nil
}

func printScoreLine(field string, score matching.Score) {
	if !score.Valid {
		colorstring.Println(fmt.Sprintf("[dim]%-20s undefined[reset]", field))
		return
	}
	color := "[red]"
	switch {
	case score.Value >= 0.8:
		color = "[green]"
	case score.Value >= 0.4:
		color = "[yellow]"
	}
	colorstring.Println(fmt.Sprintf("%-20s %s%.3f[reset]", field, color, score.Value))
}

func readOccurrence(path string) (matching.Occurrence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var occ matching.Occurrence
	if err := json.Unmarshal(data, &occ); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return occ, nil
}

// dumpOutput mirrors dump.py's output.json shape: {events, occurrences}.
type dumpOutput struct {
	Events      []dumpEvent                `json:"events"`
	Occurrences map[string]json.RawMessage `json:"occurrences"`
}

type dumpRelation struct {
	RelatedOccurrenceID string `json:"relatedOccurrenceId"`
	Decision            *bool  `json:"decision"`
	IsNewDecision       bool   `json:"is_new_decision"`
}

type dumpEvent struct {
	ID           int64          `json:"id"`
	User         dumpUser       `json:"user"`
	OccurrenceID string         `json:"occurrenceId"`
	Relations    []dumpRelation `json:"relations"`
}

type dumpUser struct {
	Name  string `json:"name"`
	ORCID string `json:"orcid"`
}

func runDump(args []string) error {
	if len(args) != 1 {
		usage()
		os.Exit(2)
	}
	outputPath := args[0]

	cfg := config.NewDefaultConfig()
	ctx := context.Background()
	s, err := store.Open(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect to store: %w", err)
	}
	defer s.Close()

	events, err := s.ListEvents(ctx, store.EventFilter{})
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	occurrenceIDs := map[int64]struct{}{}
	dumped := make([]dumpEvent, 0, len(events))
	bar := progressbar.New(len(events))
	for _, e := range events {
		occurrenceIDs[e.RefOccurrenceID] = struct{}{}
		relations := make([]dumpRelation, 0, len(e.Relations))
		for _, r := range e.Relations {
			occurrenceIDs[r.RelatedOccurrenceID] = struct{}{}
			relations = append(relations, dumpRelation{
				RelatedOccurrenceID: fmt.Sprintf("%d", r.RelatedOccurrenceID),
				Decision:            r.Decision,
				IsNewDecision:       r.IsNewDecision,
			})
		}
		dumped = append(dumped, dumpEvent{
			ID:           e.ID,
			User:         dumpUser{Name: e.UserName, ORCID: e.UserORCID},
			OccurrenceID: fmt.Sprintf("%d", e.RefOccurrenceID),
			Relations:    relations,
		})
		_ = bar.Add(1)
	}

	ids := make([]int64, 0, len(occurrenceIDs))
	for id := range occurrenceIDs {
		ids = append(ids, id)
	}
	occurrences, err := s.OccurrencesByID(ctx, ids)
	if err != nil {
		return fmt.Errorf("load occurrences: %w", err)
	}
	occurrencesByKey := make(map[string]json.RawMessage, len(occurrences))
	for id, data := range occurrences {
		occurrencesByKey[fmt.Sprintf("%d", id)] = data
	}

	out := dumpOutput{Events: dumped, Occurrences: occurrencesByKey}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}

	fmt.Printf("\nwrote %s events and %s occurrences to %s\n",
		humanize.Comma(int64(len(dumped))), humanize.Comma(int64(len(occurrencesByKey))), outputPath)
	return nil
}

// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/luxfi/veil"
	"github.com/luxfi/veil/pipeline"
)

const inlineAvatarLabel = "(inline image)"

func writeProfiles(w io.Writer, profiles []*veil.Profile) error {
	if len(profiles) == 0 {
		_, err := fmt.Fprintln(w, "No profiles")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OWNER\tCREATED\tDESCRIPTION")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Owner, p.Created().Format(time.DateOnly), p.Description)
	}
	return tw.Flush()
}

func writeProfile(w io.Writer, p *veil.Profile) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	avatar := p.Avatar
	if p.HasInlineAvatar() {
		avatar = inlineAvatarLabel
	}
	fmt.Fprintf(tw, "Owner:\t%s\n", p.Owner)
	fmt.Fprintf(tw, "Created:\t%s\n", p.Created().Format(time.RFC3339))
	fmt.Fprintf(tw, "Avatar:\t%s\n", avatar)
	fmt.Fprintf(tw, "Description:\t%s\n", p.Description)
	links := p.Links()
	for _, platform := range slices.Sorted(maps.Keys(links)) {
		fmt.Fprintf(tw, "%s:\t%s\n", platform, links[platform])
	}
	return tw.Flush()
}

func writeMessages(w io.Writer, msgs []veil.EncryptedMessage) error {
	if len(msgs) == 0 {
		_, err := fmt.Fprintln(w, "No messages")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFROM\tTO\tTIME\tHANDLE")
	for i := range msgs {
		m := &msgs[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			m.ID(),
			m.From,
			m.To,
			time.Unix(int64(m.Timestamp), 0).UTC().Format(time.RFC3339),
			m.Payload,
		)
	}
	return tw.Flush()
}

func writePayload(w io.Writer, p veil.EncodedPayload) error {
	_, err := fmt.Fprintf(w, "text:  %q\nvalue: %d (0x%08x)\n", p.RawText, p.NumericValue, p.NumericValue)
	return err
}

func writeResult(w io.Writer, r *pipeline.Result) error {
	_, err := fmt.Fprintf(w, "Confirmed %s in block %d (gas used %d)\n", r.TxHash, r.BlockNumber, r.GasUsed)
	return err
}

package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kbidzhiev/itensors/util"
)

func newMPOCmd(c *config) *cobra.Command {
	return &cobra.Command{
		Use:   "mpo",
		Short: "Compile the model and print the link structure of its matrix product operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.newModel()
			if err != nil {
				return errors.Wrap(err, "")
			}
			timer := util.NewTimer()
			h, err := c.compile(m, timer)
			if err != nil {
				return errors.Wrap(err, "")
			}

			rows := [][2]string{
				{"model", fmt.Sprintf("%s %dx%d h=%g", m.Name, c.length, c.width, c.coupling)},
				{"terms", fmt.Sprintf("%d", len(m.OpSum.Terms()))},
				{"sites", fmt.Sprintf("%d", h.Len())},
				{"link dims", fmt.Sprintf("%v", h.LinkDims())},
				{"max link dim", fmt.Sprintf("%d", h.MaxLinkDim())},
			}
			if h.LinkQN != nil {
				rows = append(rows, [2]string{"flux", fmt.Sprintf("%d", h.Flux)})
				for b, qns := range h.LinkQN {
					rows = append(rows, [2]string{fmt.Sprintf("link %d", b), fmt.Sprintf("%v", qns)})
				}
			}
			printf(cmd, "%s\n", summary("matrix product operator", rows))
			printf(cmd, "%s\n", timer)
			return nil
		},
	}
}

package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"shuttle-ticket/models"
)

func newReapCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "reap-trips",
		Short: "Cancel unclaimed trips whose ticket was cancelled",
		RunE: func(c *cobra.Command, _ []string) error {
			n, err := d.reaper.Sweep(c.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "reaped %d trips\n", n)
			return nil
		},
	}
}

func newSeedCmd(d *deps) *cobra.Command {
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create fares, operators and vehicles in the ledger",
	}
	seed.AddCommand(newSeedFareCmd(d), newFareActiveCmd(d), newSeedOperatorCmd(d), newSeedVehicleCmd(d))
	return seed
}

func newSeedFareCmd(d *deps) *cobra.Command {
	var origin, destination, price string

	c := &cobra.Command{
		Use:   "fare",
		Short: "Create an active fare for a route",
		RunE: func(c *cobra.Command, _ []string) error {
			amount, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", price, err)
			}
			fare := &models.Fare{
				Origin:      origin,
				Destination: destination,
				Price:       amount,
				Active:      true,
			}
			if err := d.store.CreateFare(c.Context(), fare); err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), fare.ID)
			return nil
		},
	}
	c.Flags().StringVar(&origin, "origin", "", "route origin")
	c.Flags().StringVar(&destination, "destination", "", "route destination")
	c.Flags().StringVar(&price, "price", "", "fare price, e.g. 45.00")
	c.MarkFlagRequired("origin")
	c.MarkFlagRequired("destination")
	c.MarkFlagRequired("price")
	return c
}

func newFareActiveCmd(d *deps) *cobra.Command {
	var active bool

	c := &cobra.Command{
		Use:   "fare-active <fare-id>",
		Short: "Enable or disable an existing fare",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if err := d.store.SetFareActive(c.Context(), args[0], active); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "fare %s active=%t\n", args[0], active)
			return nil
		},
	}
	c.Flags().BoolVar(&active, "active", true, "whether the fare can be sold")
	return c
}

func newSeedOperatorCmd(d *deps) *cobra.Command {
	var userID, license, company string
	var validated bool

	c := &cobra.Command{
		Use:   "operator",
		Short: "Register an operator profile for an existing user",
		RunE: func(c *cobra.Command, _ []string) error {
			op := &models.Operator{
				UserID:        userID,
				LicenseNumber: license,
				Validated:     validated,
				CompanyID:     company,
			}
			if err := d.store.CreateOperator(c.Context(), op); err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), op.ID)
			return nil
		},
	}
	c.Flags().StringVar(&userID, "user", "", "auth user id")
	c.Flags().StringVar(&license, "license", "", "license number")
	c.Flags().StringVar(&company, "company", "", "company id")
	c.Flags().BoolVar(&validated, "validated", true, "mark the operator as validated")
	c.MarkFlagRequired("user")
	c.MarkFlagRequired("license")
	return c
}

func newSeedVehicleCmd(d *deps) *cobra.Command {
	var plate, model, company string

	c := &cobra.Command{
		Use:   "vehicle",
		Short: "Register a vehicle",
		RunE: func(c *cobra.Command, _ []string) error {
			v := &models.Vehicle{Plate: plate, Model: model, CompanyID: company}
			if err := d.store.CreateVehicle(c.Context(), v); err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), v.ID)
			return nil
		},
	}
	c.Flags().StringVar(&plate, "plate", "", "license plate")
	c.Flags().StringVar(&model, "model", "", "vehicle model")
	c.Flags().StringVar(&company, "company", "", "company id")
	c.MarkFlagRequired("plate")
	return c
}

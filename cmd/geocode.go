package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/trilemmafoundation/canada-tech/internal/company"
	"github.com/trilemmafoundation/canada-tech/internal/normalize"
)

var (
	geocodeCity     string
	geocodeProvince string
	geocodeAddress  string
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Resolve a location the way the merge would",
	Long: `Builds the same query the pipeline uses for a staged entry and prints the
coordinates it resolves to. Useful when an entry is rejected with a
geocoding failure.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		prov, ok := company.ParseProvince(geocodeProvince)
		if !ok {
			return eris.Errorf("unknown province %q", geocodeProvince)
		}
		rec := company.Record{City: geocodeCity, Province: prov, HQAddress: geocodeAddress}

		client, closeCache := initGeocoder(cmd.Context())
		defer closeCache()

		locator := normalize.NewLocator(client, normalize.LocatorOptions{
			FallbackToCity: cfg.Geocode.FallbackToCity,
		})
		lat, lng, err := locator.Locate(cmd.Context(), rec)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s, %s\n",
			normalize.Query(rec), company.FormatCoord(lat), company.FormatCoord(lng))
		return nil
	},
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodeCity, "city", "", "city name")
	geocodeCmd.Flags().StringVar(&geocodeProvince, "province", "", "two-letter province or territory code")
	geocodeCmd.Flags().StringVar(&geocodeAddress, "address", "", "street address (optional)")
	_ = geocodeCmd.MarkFlagRequired("city")
	_ = geocodeCmd.MarkFlagRequired("province")
	rootCmd.AddCommand(geocodeCmd)
}

package main

import (
	"os"

	"github.com/AffiliateAggregator/AffiliateAggregator/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}

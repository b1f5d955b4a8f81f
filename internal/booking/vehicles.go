package booking

// Vehicle is the display data for a category card.
type Vehicle struct {
	Name          string
	MaxPassengers int
	Features      []string
	Image         string
}

var vehicles = map[VehicleCategory]Vehicle{
	Economy: {
		Name:          "Economy",
		MaxPassengers: 4,
		Features:      []string{"Budget-friendly option", "Standard sedan", "Up to 4 passengers"},
		Image:         "/static/img/economy.svg",
	},
	Standard: {
		Name:          "Standard",
		MaxPassengers: 4,
		Features:      []string{"Comfortable ride", "Mid-size vehicle", "Up to 4 passengers", "Air conditioning"},
		Image:         "/static/img/standard.svg",
	},
	Premium: {
		Name:          "Premium",
		MaxPassengers: 4,
		Features: []string{
			"Luxury experience",
			"High-end vehicle",
			"Up to 4 passengers",
			"Air conditioning",
			"Free Wi-Fi",
			"Bottled water",
		},
		Image: "/static/img/premium.svg",
	},
	Van: {
		Name:          "Van",
		MaxPassengers: 8,
		Features:      []string{"Spacious vehicle", "Up to 8 passengers", "Ideal for groups", "Luggage space"},
		Image:         "/static/img/van.svg",
	},
}

// VehicleFor returns catalogue data, falling back to the raw category name.
func VehicleFor(c VehicleCategory) Vehicle {
	if v, ok := vehicles[c]; ok {
		return v
	}
	return Vehicle{Name: string(c), Image: "/static/img/standard.svg"}
}

package topic

const (
	// Separator divides topic levels.
	Separator = "/"

	// Wildcard matches exactly one level: "wincan/+" matches "wincan/device1"
	// but not "wincan/device1/0D-VehicleSpeed".
	Wildcard = "+"

	// MultiWildcard matches the remaining levels and may only end a filter.
	MultiWildcard = "#"

	// SharePrefix starts a shared subscription, $share/<group>/<filter>.
	SharePrefix = "$share/"
)

package scene

import (
	"strings"

	"cogentcore.org/core/math32"
)

// CameraHeight is the eye height the active camera is placed at on load
const CameraHeight = 1.2

// Preset describes a selectable 3D scene
type Preset struct {
	Name      string
	Title     string
	BaseURL   string
	SceneFile string
	Spawn     Pose // initial camera pose, also where new avatars appear
}

// Catalog lists the selectable scenes. The first entry is the default.
var Catalog = []Preset{
	{Name: "apartment", Title: "Apartment", BaseURL: "https://www.babylonjs.com/Scenes/flat2009/", SceneFile: "flat2009.babylon", Spawn: spawnAt(0, 0)},
	{Name: "museum", Title: "Museum", BaseURL: "https://www.babylonjs.com/Scenes/Espilit/", SceneFile: "Espilit.babylon", Spawn: spawnAt(-2, 3)},
	{Name: "wincafe", Title: "Windows Café", BaseURL: "https://www.babylonjs.com/Scenes/WCafe/", SceneFile: "WCafe.babylon", Spawn: spawnAt(1, -4)},
	{Name: "sponza", Title: "Sponza", BaseURL: "https://www.babylonjs.com/Scenes/Sponza/", SceneFile: "Sponza.babylon", Spawn: spawnAt(0, -5)},
	{Name: "hillvalley", Title: "Hill Valley", BaseURL: "https://www.babylonjs.com/Scenes/HillValley/", SceneFile: "HillValley.incremental.babylon", Spawn: spawnAt(3, 3)},
}

func spawnAt(x, z float32) Pose {
	return Pose{Position: math32.Vec3(x, CameraHeight, z)}
}

// DefaultPresetIndex returns the index of the default scene (Apartment)
func DefaultPresetIndex() int {
	return 0
}

// PresetByName finds a scene by name (case-insensitive). Unknown names,
// including the historical "appartment" spelling, fall back to the default.
func PresetByName(name string) Preset {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range Catalog {
		if p.Name == name {
			return p
		}
	}
	return Catalog[DefaultPresetIndex()]
}

// Package plugins holds the analysis plugin registry and the built-in plugins.
//
// A plugin is a pure function over one chunk of mono samples plus a parameter mapping, registered once at
// process start under a unique name:
//
//	reg := plugins.NewRegistry()
//	reg.MustRegister(plugins.Descriptor{
//		Name:          "energy",
//		Invoke:        energy,
//		DefaultParams: plugins.Params{},
//		Description:   "Mean square energy and RMS",
//	})
//
// Registration rejects an empty name, a nil function and a name that is already taken. There is no
// runtime discovery: the set of plugins is whatever the process registered before serving.
//
// [Builtin] returns a registry with energy, noise_level_detection, voice_activity_detection,
// zero_crossing_rate and peak.
package plugins

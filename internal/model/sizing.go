package model

// BaseVolumeL returns the circuit's nominal (pre-weather-adjustment) target
// volume in liters, per the emitter model selected by AreaMode (§4.2 Numeric
// semantics):
//
//	even-area mode: liters = target_mm * area_m2
//	dripper mode:   liters = liters_per_min_dripper * (total_flow / min_flow)
func (c CircuitConfig) BaseVolumeL() float64 {
	if c.AreaMode {
		return c.TargetMM * c.AreaM2
	}

	minFlow := c.Drippers.MinFlowLPH()
	if minFlow == 0 {
		return 0
	}
	return c.LitersPerMinDripper * (c.Drippers.TotalFlowLPH() / float64(minFlow))
}

// EffectiveFlowLPH returns the circuit's combined emitter flow rate in
// liters/hour, used to convert a target volume into a target duration and to
// track live progress during execution (§4.2).
func (c CircuitConfig) EffectiveFlowLPH() float64 {
	return c.Drippers.TotalFlowLPH()
}

package mode_s

// decode13BitAltitudeCode decodes the AC13 field used by DF0/4/16/20 (spec.md
// §4.2). Bit layout: 00000000 00000000 00011111 1M1Q1111, bits 20-32.
func (f *Frame) decode13BitAltitudeCode() {
	ac := uint32(f.message[2]&0x1f)<<8 | uint32(f.message[3])

	mBit := ac&0x40 != 0 // bit 26: 0 = feet, 1 = metres
	qBit := ac&0x10 != 0 // bit 28: 1 = 25ft encoding, 0 = Gillham Mode C

	switch {
	case !mBit && qBit:
		f.altitudeUnit = modesUnitFeet
		n := int32(((ac & 0x1f80) >> 2) | ((ac & 0x0020) >> 1) | (ac & 0x000f))
		f.altitude = n*25 - 1000
		f.validAltitude = true

	case !mBit && !qBit:
		f.altitudeUnit = modesUnitFeet
		gillham := decodeID13Field(int32(ac))
		fl, ok := modeAToModeC(gillham)
		f.validAltitude = ok && fl >= -12
		if f.validAltitude {
			f.altitude = fl * 100
		} else {
			f.altitude = 0
		}

	default: // mBit set: metres - not populated by the upstream demodulator
		f.altitudeUnit = modesUnitMetres
		f.validAltitude = false
	}

	if f.validAltitude {
		f.bFlags |= bFlagAltitude
	}
}

// decode12BitAltitudeCode decodes the AC12 field used by DF17/18 airborne
// position messages (ME type 9-22). There is no M bit in this variant, but
// spec.md §4.2 requires the Q=0 Gillham fallback to run the identical logic
// as the 13-bit form after inserting M=0, so the Q bit alone doesn't decide
// validity the way the old always-invalid else branch assumed.
func (f *Frame) decode12BitAltitudeCode() {
	ac12 := uint32(f.message[5])<<4 | uint32(f.message[6])>>4
	f.altitudeUnit = modesUnitFeet

	if ac12&0x10 != 0 {
		n := int32(((ac12 & 0x0fe0) >> 1) | (ac12 & 0x000f))
		f.altitude = n*25 - 1000
		f.validAltitude = true
	} else {
		// insert M=0 between bits 6 and 5 so the 12-bit Gillham code lines
		// up with decodeID13Field's 13-bit layout.
		n := int32(((ac12 & 0x0fc0) << 1) | (ac12 & 0x003f))
		gillham := decodeID13Field(n)
		fl, ok := modeAToModeC(gillham)
		f.validAltitude = ok && fl >= -12
		if f.validAltitude {
			f.altitude = fl * 100
		} else {
			f.altitude = 0
		}
	}

	if f.validAltitude {
		f.bFlags |= bFlagAltitude
	}
}

package mode_s

import "math"

// decodeAdsb dispatches a DF17/18 extended squitter on its 5-bit ME type
// field (spec.md §4.4). The ME payload occupies message bytes 4-10.
func (f *Frame) decodeAdsb() error {
	me := f.message[4:11]
	f.meType = int(me[0] >> 3)
	f.meSub = int(me[0] & 7)

	switch {
	case f.meType >= 1 && f.meType <= 4:
		f.decodeIdentification(me)
	case f.meType >= 5 && f.meType <= 8:
		f.decodeSurfacePosition(me)
	case f.meType >= 9 && f.meType <= 18, f.meType >= 20 && f.meType <= 22:
		f.decodeAirbornePosition(me)
	case f.meType == 19:
		f.decodeAirborneVelocity(me)
	case f.meType == 23 && f.meSub == 7:
		f.decodeIdentity13(me)
	case f.meType == 28 && f.meSub == 1:
		// 3-bit emergency state, then the 13-bit Mode A code
		f.emergency = true
		gillham := decodeID13Field(int32(me[1]&0x1f)<<8 | int32(me[2]))
		f.identity = uint32(((gillham>>12)&0xf)*1000 + ((gillham>>8)&0xf)*100 + ((gillham>>4)&0xf)*10 + gillham&0xf)
		f.bFlags |= bFlagSquawk
	}
	return nil
}

// decodeIdentification decodes ME type 1-4 (aircraft identification and
// category): a 6-bit wake-vortex category followed by 8 packed 6-bit
// callsign characters.
func (f *Frame) decodeIdentification(me []byte) {
	f.callsign = decodeFlightNumber(me[1:7])
	if f.callsign != "" {
		f.bFlags |= bFlagCallsign
	}
}

// decodeSurfacePosition decodes ME type 5-8: ground movement speed, ground
// track validity/value, and a surface-referenced CPR position.
func (f *Frame) decodeSurfacePosition(me []byte) {
	f.surface = true

	movement := int32((me[0]&0x07)<<4) | int32(me[1]>>4)
	speed := decodeGroundMovement(movement)
	if speed >= 0 {
		f.speed = speed
		f.validSpeed = true
		f.bFlags |= bFlagSpeed
	}

	if me[1]&0x08 != 0 {
		heading := (int32(me[1]&0x07)<<4 | int32(me[2]>>4)) * 360 / 128
		f.heading = float64(heading)
		f.validHeading = true
		f.bFlags |= bFlagHeading
	}

	f.decodeRawCPR(me, 2)
}

// decodeAirbornePosition decodes ME type 9-18/20-22: a 12-bit altitude (no M
// bit, unlike the 13-bit surveillance encoding) and an airborne-referenced
// CPR position.
func (f *Frame) decodeAirbornePosition(me []byte) {
	f.surface = false
	f.decode12BitAltitudeCode()
	f.decodeRawCPR(me, 2)
}

// decodeRawCPR extracts the common even/odd-flagged 17+17 bit CPR position
// fields starting at byte offset `off` of the ME payload.
func (f *Frame) decodeRawCPR(me []byte, off int) {
	f.fflag = (me[off] & 0x04) >> 2
	f.rawLatitude = (int32(me[off]&0x03) << 15) | (int32(me[off+1]) << 7) | (int32(me[off+2]) >> 1)
	f.rawLongitude = (int32(me[off+2]&0x01) << 16) | (int32(me[off+3]) << 8) | int32(me[off+4])
	f.bFlags |= bFlagLatLon
}

// decodeAirborneVelocity decodes ME type 19: ground-speed subtypes 1/2 carry
// signed East-West/North-South velocity components directly; air-speed
// subtypes 3/4 carry a heading and airspeed magnitude instead. Both carry a
// signed vertical rate in the trailing bits.
func (f *Frame) decodeAirborneVelocity(me []byte) {
	switch f.meSub {
	case 1, 2:
		f.ewDir = (me[1] & 0x04) >> 2
		ewVel := (int32(me[1]&0x03) << 8) | int32(me[2])
		f.nsDir = (me[3] & 0x80) >> 7
		nsVel := (int32(me[3]&0x7f) << 3) | int32(me[4]>>5)

		if ewVel != 0 {
			ewVel--
		}
		if nsVel != 0 {
			nsVel--
		}
		if f.meSub == 2 { // supersonic: 4x resolution
			ewVel *= 4
			nsVel *= 4
		}
		f.ewVelocity = ewVel
		f.nsVelocity = nsVel
		f.bFlags |= bFlagEWSpeed | bFlagNSSpeed

		ewSigned := float64(ewVel)
		if f.ewDir == West {
			ewSigned = -ewSigned
		}
		nsSigned := float64(nsVel)
		if f.nsDir == South {
			nsSigned = -nsSigned
		}
		if ewSigned != 0 || nsSigned != 0 {
			f.speed = math.Hypot(ewSigned, nsSigned)
			f.validSpeed = true
			f.bFlags |= bFlagSpeed

			heading := math.Atan2(ewSigned, nsSigned) * 360 / (2 * math.Pi)
			if heading < 0 {
				heading += 360
			}
			f.heading = heading
			f.validHeading = true
			f.bFlags |= bFlagHeading
		}

	case 3, 4:
		if me[1]&0x80 != 0 {
			heading := (int32(me[1]&0x7f) << 3) | int32(me[2]>>5)
			f.heading = float64(heading) * 360.0 / 1024.0
			f.validHeading = true
			f.bFlags |= bFlagHeading
		}
		airspeed := (int32(me[3]&0x7f) << 3) | int32(me[4]>>5)
		if airspeed != 0 {
			airspeed--
			if f.meSub == 4 {
				airspeed *= 4
			}
			f.speed = float64(airspeed)
			f.validSpeed = true
			f.bFlags |= bFlagSpeed
		}
	}

	vertSign := (me[4] & 0x08) >> 3
	vertRate := (int32(me[4]&0x07) << 6) | int32(me[5]>>2)
	if vertRate != 0 {
		vertRate = (vertRate - 1) * 64
		if vertSign != 0 {
			vertRate = -vertRate
		}
		f.vertRate = vertRate
		f.bFlags |= bFlagVertRate
	}
}

// decodeIdentity13 decodes ME type 23 subtype 7: an emergency/priority
// squawk carried as a 13-bit Gillham identity field, same bit-shuffle as the
// Mode A/C squawk carried on DF5/21.
func (f *Frame) decodeIdentity13(me []byte) {
	id13 := (int32(me[1]) << 5) | (int32(me[2]) >> 3)
	gillham := decodeID13Field(id13)

	a := (gillham >> 12) & 0xf
	b := (gillham >> 8) & 0xf
	c := (gillham >> 4) & 0xf
	d := gillham & 0xf

	f.identity = uint32(a*1000 + b*100 + c*10 + d)
	f.bFlags |= bFlagSquawk
}

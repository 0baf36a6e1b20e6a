// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

// Record is one extracted telemetry record. The concrete types below are
// the only implementations.
type Record interface {
	Type() MessageType
	isRecord()
}

// GPS is a raw GPS fix. Position in degrees * 1e7 and millimeters.
type GPS struct {
	Lat int32
	Lon int32
	Alt int32
	Cog uint16 // course over ground, cdeg
	Vel uint16 // ground speed, cm/s
	Eph uint16 // horizontal dilution * 100
}

// GPSDateTime is the GPS receiver's UTC date and time
type GPSDateTime struct {
	Year        uint8
	Month       uint8
	Day         uint8
	Hour        uint8
	Min         uint8
	Sec         uint8
	VisibleSats uint8
}

// AirData holds scaled pressures in hPa and temperature in cdegC
type AirData struct {
	PressDiff   float32
	PressAbs    float32
	Temperature int16
}

// RawIMU holds unscaled gyro, accelerometer and magnetometer readings
type RawIMU struct {
	XGyro int16
	YGyro int16
	ZGyro int16
	XAcc  int16
	YAcc  int16
	ZAcc  int16
	XMag  int16
	YMag  int16
	ZMag  int16
}

// RawPressure holds unscaled pressure sensor readings
type RawPressure struct {
	PressDiff1  int16
	PressAbs    int16
	Temperature int16
}

// Attitude in radians and radians/second. The simulator sends its clock in
// microseconds; TimeBootMs is already converted to milliseconds.
type Attitude struct {
	Roll       float32
	Pitch      float32
	Yaw        float32
	RollSpeed  float32
	PitchSpeed float32
	YawSpeed   float32
	TimeBootMs uint32
}

// LocalPosition is the NED position in meters and velocity in m/s
type LocalPosition struct {
	X  float32
	Y  float32
	Z  float32
	VX float32
	VY float32
	VZ float32
}

func (GPS) Type() MessageType           { return MsgGPS }
func (GPSDateTime) Type() MessageType   { return MsgGPSDateTime }
func (AirData) Type() MessageType       { return MsgAirData }
func (RawIMU) Type() MessageType        { return MsgRawIMU }
func (RawPressure) Type() MessageType   { return MsgRawPressure }
func (Attitude) Type() MessageType      { return MsgAttitude }
func (LocalPosition) Type() MessageType { return MsgLocalPosition }

func (GPS) isRecord()           {}
func (GPSDateTime) isRecord()   {}
func (AirData) isRecord()       {}
func (RawIMU) isRecord()        {}
func (RawPressure) isRecord()   {}
func (Attitude) isRecord()      {}
func (LocalPosition) isRecord() {}

// Package mocks provides test doubles for the locator ports.
package mocks

import (
	"context"

	locator "github.com/sells-group/store-locator/internal/locator"
	mock "github.com/stretchr/testify/mock"
)

// MockGeocodingPort is a mock type for the GeocodingPort interface.
type MockGeocodingPort struct {
	mock.Mock
}

// Resolve provides a mock function with given fields: ctx, address
func (_m *MockGeocodingPort) Resolve(ctx context.Context, address string) (locator.Coordinate, error) {
	ret := _m.Called(ctx, address)

	if len(ret) == 0 {
		panic("no return value specified for Resolve")
	}

	var r0 locator.Coordinate
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (locator.Coordinate, error)); ok {
		return rf(ctx, address)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) locator.Coordinate); ok {
		r0 = rf(ctx, address)
	} else {
		r0 = ret.Get(0).(locator.Coordinate)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, address)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockGeocodingPort creates a new instance of MockGeocodingPort.
func NewMockGeocodingPort(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockGeocodingPort {
	m := &MockGeocodingPort{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// MockSearchPort is a mock type for the SearchPort interface.
type MockSearchPort struct {
	mock.Mock
}

// Search provides a mock function with given fields: ctx, origin, radiusMeters
func (_m *MockSearchPort) Search(ctx context.Context, origin locator.Coordinate, radiusMeters float64) ([]locator.Facility, error) {
	ret := _m.Called(ctx, origin, radiusMeters)

	if len(ret) == 0 {
		panic("no return value specified for Search")
	}

	var r0 []locator.Facility
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, locator.Coordinate, float64) ([]locator.Facility, error)); ok {
		return rf(ctx, origin, radiusMeters)
	}
	if rf, ok := ret.Get(0).(func(context.Context, locator.Coordinate, float64) []locator.Facility); ok {
		r0 = rf(ctx, origin, radiusMeters)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]locator.Facility)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, locator.Coordinate, float64) error); ok {
		r1 = rf(ctx, origin, radiusMeters)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockSearchPort creates a new instance of MockSearchPort.
func NewMockSearchPort(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSearchPort {
	m := &MockSearchPort{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

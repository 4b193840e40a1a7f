package dto

import "time"

type GuardianResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RiderResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Guardians []GuardianResponse `json:"guardians"`
}

type WaypointResponse struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Address string          `json:"address"`
	Lat     float64         `json:"lat"`
	Lng     float64         `json:"lng"`
	Status  string          `json:"status"`
	Riders  []RiderResponse `json:"riders"`
}

type RouteResponse struct {
	ID                   string             `json:"id"`
	Name                 string             `json:"name"`
	DriverName           string             `json:"driver_name"`
	Status               string             `json:"status"`
	CurrentWaypointIndex int                `json:"current_waypoint_index"`
	DepartTime           *time.Time         `json:"depart_time"`
	FinishedTime         *time.Time         `json:"finished_time"`
	Waypoints            []WaypointResponse `json:"waypoints"`
}

type ListRoutesResponse struct {
	Routes []RouteResponse `json:"routes"`
}

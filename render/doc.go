/*
Package render writes timetable grids as aligned text, CSV, or JSON.

Text output is for terminals and uses "-" for cells a trip skips. CSV
leaves those cells empty. JSON carries times as HH:MM:SS strings, with
hours past 24 intact, so consumers never need the seconds convention.
*/
package render

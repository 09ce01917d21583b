// Package lifespan holds the pure pieces of the life calendar: strict birth date
// parsing, the region life expectancy catalog and the weeks arithmetic.
package lifespan
